// Package backup snapshots the installation before any destructive change
// and restores it when the update fails.
package backup

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"handover/transfer"
)

// Snapshot is a full copy of the installation tree at the moment it was
// created. It is deleted on success, consumed by Rollback on failure, or
// left behind for forensic recovery if the rollback itself fails.
type Snapshot struct {
	Dir       string
	CreatedAt time.Time
}

// Remove deletes the snapshot directory. Best effort: a leftover backup in
// the temp location is harmless.
func (s *Snapshot) Remove() {
	if err := os.RemoveAll(s.Dir); err != nil {
		log.Printf("[backup] Failed to remove snapshot %s: %v", s.Dir, err)
	}
}

// Manager creates and restores installation snapshots.
type Manager struct {
	copier   *transfer.Copier
	excludes *transfer.Excludes
}

// NewManager creates a Manager. The exclusion set covers the updater's own
// executable and any pre-existing flag or log files, which are run
// artifacts rather than application state.
func NewManager(copier *transfer.Copier, excludes *transfer.Excludes) *Manager {
	return &Manager{copier: copier, excludes: excludes}
}

// Create snapshots installDir into a fresh, process-unique directory under
// the system temp location. Any failure aborts the snapshot: a partial
// backup is worse than none, because it looks trustworthy.
func (m *Manager) Create(installDir string) (*Snapshot, error) {
	root := filepath.Join(os.TempDir(), fmt.Sprintf("handover-backup-%s", ulid.Make()))
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create backup root: %w", err)
	}

	if err := m.copyTree(installDir, root); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("backup %s: %w", installDir, err)
	}

	log.Printf("[backup] Snapshot of %s created at %s", installDir, root)

	return &Snapshot{Dir: root, CreatedAt: time.Now()}, nil
}

// copyTree mirrors the directory tree of src under dst, then copies every
// non-excluded file. Two explicit passes keep the exclusion logic out of
// the directory handling.
func (m *Manager) copyTree(src, dst string) error {
	if err := mirrorDirs(src, dst); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || m.excludes.Match(path) {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		return m.copier.CopyFile(path, filepath.Join(dst, rel), true)
	})
}

// mirrorDirs recreates the directory tree of src under dst without
// touching any files.
func mirrorDirs(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		return os.MkdirAll(filepath.Join(dst, rel), 0755)
	})
}
