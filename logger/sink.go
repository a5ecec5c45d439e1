package logger

import "time"

// Level classifies a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is a single log event.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
}

// Sink is a logging destination.
type Sink interface {
	// Write writes a log entry to the sink
	Write(entry *Entry) error

	// Close closes the sink and releases any resources
	Close() error

	// Name returns the name/ID of this sink
	Name() string
}
