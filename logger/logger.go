// Package logger is the run log of the updater: one line per event,
// "[<timestamp>] [<LEVEL>] <message>", appended to a file and optionally
// shipped to Axiom. The host application reads the file when an update
// goes wrong; this process has no failure UI of its own.
package logger

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Logger fans entries out to every configured sink and mirrors them to the
// standard logger for anyone watching the console.
type Logger struct {
	mu      sync.Mutex
	sinks   []Sink
	console bool
}

// New creates a Logger over the given sinks. No sinks is valid: entries
// then only reach the console.
func New(sinks ...Sink) *Logger {
	return &Logger{sinks: sinks, console: true}
}

// SetConsole toggles mirroring entries to the standard logger. The sinks
// always receive every entry regardless.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = enabled
}

// AddSink attaches another destination.
func (l *Logger) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Infof logs an informational event.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a recoverable problem; the pipeline continues.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.write(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs a failure that decides or threatens the update outcome.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level Level, message string) {
	entry := &Entry{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.console {
		log.Printf("[%s] %s", level, message)
	}

	for _, sink := range l.sinks {
		if err := sink.Write(entry); err != nil {
			log.Printf("[logger] Failed to write to sink %s: %v", sink.Name(), err)
		}
	}
}

// Close closes all sinks and returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil {
			log.Printf("[logger] Error closing sink %s: %v", sink.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	l.sinks = nil

	return firstErr
}
