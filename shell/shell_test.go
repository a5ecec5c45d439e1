package shell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCanWrite_WritableDir(t *testing.T) {
	if !New().CanWrite(t.TempDir()) {
		t.Error("CanWrite = false for a fresh temp directory")
	}
}

func TestCanWrite_MissingDir(t *testing.T) {
	if New().CanWrite(filepath.Join(t.TempDir(), "does-not-exist")) {
		t.Error("CanWrite = true for a missing directory")
	}
}

func TestCanWrite_LeavesNoProbe(t *testing.T) {
	dir := t.TempDir()
	New().CanWrite(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
}

func TestCreateShortcut(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "SyncDesk")

	err := NewShortcutCreator().CreateShortcut(
		filepath.Join(dir, "syncdesk.exe"),
		dir,
		filepath.Join(dir, "syncdesk.exe"),
		dest,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}

	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "SyncDesk") {
			found = true
		}
	}
	if !found {
		t.Error("no shortcut file was written")
	}
}
