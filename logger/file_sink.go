package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// FileSink appends log lines to a file. The file is never rotated or
// truncated by this component; every run of the updater appends to the
// same history.
type FileSink struct {
	name string
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileSink opens (or creates) the log file at path in append mode.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &FileSink{
		name: "file",
		path: path,
		file: file,
	}, nil
}

// Write appends one "[<timestamp>] [<LEVEL>] <message>" line.
func (s *FileSink) Write(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("file sink %s is closed", s.name)
	}

	line := fmt.Sprintf("[%s] [%s] %s\n", entry.Time.Format(time.RFC3339), entry.Level, entry.Message)
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	return nil
}

// Close closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}

	return nil
}

// Name returns the name of this sink.
func (s *FileSink) Name() string {
	return s.name
}
