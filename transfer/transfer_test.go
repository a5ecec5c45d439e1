package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testCopier() *Copier {
	// Short retry delay so failure paths don't slow the suite down.
	return &Copier{
		Retries:    2,
		RetryDelay: 5 * time.Millisecond,
		ChunkSize:  DefaultChunkSize,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestCopyFile_Basic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "payload")

	if err := testCopier().CopyFile(src, dst, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, dst); got != "payload" {
		t.Errorf("destination content = %q, want %q", got, "payload")
	}
}

func TestCopyFile_ZeroRetriesStillBounded(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	writeFile(t, src, "payload")

	// A directory standing where the file must land fails every attempt;
	// a misconfigured zero-retry copier must give up, not spin forever.
	dst := filepath.Join(dir, "dst.bin")
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatal(err)
	}

	c := &Copier{Retries: 0, RetryDelay: time.Millisecond, ChunkSize: DefaultChunkSize}

	done := make(chan error, 1)
	go func() { done <- c.CopyFile(src, dst, true) }()

	select {
	case err := <-done:
		var copyErr *CopyError
		if !errors.As(err, &copyErr) {
			t.Fatalf("expected *CopyError, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CopyFile with zero retries never returned")
	}
}

func TestCopyFile_Overwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "new content")
	writeFile(t, dst, "old content that is longer")

	if err := testCopier().CopyFile(src, dst, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := readFile(t, dst); got != "new content" {
		t.Errorf("destination content = %q, want %q", got, "new content")
	}
}

func TestCopyFile_ReadOnlyDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	if err := os.Chmod(dst, 0444); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	if err := testCopier().CopyFile(src, dst, true); err != nil {
		t.Fatalf("copy onto read-only destination failed: %v", err)
	}

	if got := readFile(t, dst); got != "new" {
		t.Errorf("destination content = %q, want %q", got, "new")
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()

	err := testCopier().CopyFile(filepath.Join(dir, "missing.bin"), filepath.Join(dir, "dst.bin"), true)
	if err == nil {
		t.Fatal("expected error for missing source")
	}

	var copyErr *CopyError
	if !errors.As(err, &copyErr) {
		t.Fatalf("expected *CopyError, got %T: %v", err, err)
	}
}

func TestCopyFile_NoOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	err := testCopier().CopyFile(src, dst, false)
	if err == nil {
		t.Fatal("expected error when destination exists and overwrite is false")
	}

	if got := readFile(t, dst); got != "old" {
		t.Errorf("destination was modified: %q", got)
	}
}

func TestNewManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.exe"), "a")
	writeFile(t, filepath.Join(dir, "lib", "core.dll"), "b")
	writeFile(t, filepath.Join(dir, "lib", "extra.dll"), "c")

	m, err := NewManifest(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}

	tests := []struct {
		rel  string
		want bool
	}{
		{"app.exe", true},
		{"APP.EXE", true}, // comparison is case-insensitive
		{filepath.Join("lib", "core.dll"), true},
		{filepath.Join("LIB", "Core.DLL"), true},
		{"missing.dll", false},
		{"lib", false}, // directories are not entries
	}
	for _, tt := range tests {
		if got := m.Contains(tt.rel); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestNewManifest_Empty(t *testing.T) {
	m, err := NewManifest(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if len(m.Paths()) != 0 {
		t.Errorf("Paths() = %v, want empty", m.Paths())
	}
}

func TestNewManifest_MissingRoot(t *testing.T) {
	if _, err := NewManifest(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}
