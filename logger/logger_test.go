package logger

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// memorySink is a test double capturing entries in order.
type memorySink struct {
	entries  []*Entry
	writeErr error
	closed   bool
}

func (m *memorySink) Write(entry *Entry) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func (m *memorySink) Name() string { return "memory" }

func TestLogger_ConsoleToggle(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	sink := &memorySink{}
	l := New(sink)

	l.SetConsole(false)
	l.Infof("quiet message")
	if strings.Contains(buf.String(), "quiet message") {
		t.Error("entry mirrored to the console while disabled")
	}

	l.SetConsole(true)
	l.Infof("loud message")
	if !strings.Contains(buf.String(), "loud message") {
		t.Error("entry not mirrored to the console while enabled")
	}

	// The sink sees every entry regardless of the console setting.
	if len(sink.entries) != 2 {
		t.Errorf("sink received %d entries, want 2", len(sink.entries))
	}
}

func TestLogger_Levels(t *testing.T) {
	sink := &memorySink{}
	l := New(sink)

	l.Infof("waiting for pid %d", 4242)
	l.Warnf("wait timed out")
	l.Errorf("copy %s failed", "lib.dll")

	if len(sink.entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(sink.entries))
	}

	want := []struct {
		level Level
		msg   string
	}{
		{LevelInfo, "waiting for pid 4242"},
		{LevelWarn, "wait timed out"},
		{LevelError, "copy lib.dll failed"},
	}
	for i, w := range want {
		if sink.entries[i].Level != w.level {
			t.Errorf("entry %d level = %s, want %s", i, sink.entries[i].Level, w.level)
		}
		if sink.entries[i].Message != w.msg {
			t.Errorf("entry %d message = %q, want %q", i, sink.entries[i].Message, w.msg)
		}
		if sink.entries[i].Time.IsZero() {
			t.Errorf("entry %d has a zero timestamp", i)
		}
	}
}

func TestLogger_SinkErrorDoesNotPropagate(t *testing.T) {
	bad := &memorySink{writeErr: fmt.Errorf("disk full")}
	good := &memorySink{}
	l := New(bad, good)

	l.Infof("still works") // must not panic

	if len(good.entries) != 1 {
		t.Errorf("healthy sink got %d entries, want 1", len(good.entries))
	}
}

func TestLogger_Close(t *testing.T) {
	a := &memorySink{}
	b := &memorySink{}
	l := New(a)
	l.AddSink(b)

	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("not all sinks were closed")
	}
}

func TestFileSink_LineFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handover.log")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l := New(sink)
	l.Infof("backup created")
	l.Errorf("apply failed")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), data)
	}

	// One line per event: "[<timestamp>] [<LEVEL>] <message>"
	lineRe := regexp.MustCompile(`^\[[^\]]+\] \[(INFO|WARN|ERROR)\] .+$`)
	for _, line := range lines {
		if !lineRe.MatchString(line) {
			t.Errorf("malformed log line: %q", line)
		}
	}
	if !strings.Contains(lines[0], "[INFO] backup created") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ERROR] apply failed") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestFileSink_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "handover.log")
	if err := os.WriteFile(path, []byte("[old] [INFO] previous run\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Write(&Entry{Level: LevelInfo, Message: "new run"}); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	sink.Close()

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "[old] [INFO] previous run\n") {
		t.Error("existing log content was truncated")
	}
	if !strings.Contains(string(data), "new run") {
		t.Error("new entry was not appended")
	}
}

func TestFileSink_ClosedWrite(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "handover.log"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sink.Close()

	if err := sink.Write(&Entry{Level: LevelInfo, Message: "too late"}); err == nil {
		t.Fatal("expected error writing to a closed sink")
	}
}
