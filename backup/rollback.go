package backup

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
)

// RollbackError is the most severe failure in the repository: when it is
// returned the installation may be in neither the old nor the new state.
type RollbackError struct {
	Reason string
	Err    error
}

func (e *RollbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rollback failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("rollback failed: %s", e.Reason)
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}

// Rollback restores installDir from snap: every file except the excluded
// ones is deleted, emptied directories are removed deepest-first, and the
// snapshot tree is copied back with the same two-pass strategy used to
// create it. A missing snapshot is an error, never silently ignored —
// there is nothing to restore from.
func (m *Manager) Rollback(installDir string, snap *Snapshot) error {
	if snap == nil {
		return &RollbackError{Reason: "no snapshot was taken"}
	}

	if info, err := os.Stat(snap.Dir); err != nil || !info.IsDir() {
		return &RollbackError{Reason: fmt.Sprintf("snapshot %s does not exist", snap.Dir), Err: err}
	}

	log.Printf("[backup] Rolling back %s from %s", installDir, snap.Dir)

	m.clearTree(installDir)

	if err := m.copyTree(snap.Dir, installDir); err != nil {
		return &RollbackError{Reason: "restoring snapshot", Err: err}
	}

	return nil
}

// clearTree deletes every non-excluded file under root, then removes the
// now-empty directories children-first. Individual failures are logged and
// skipped: whatever survives gets overwritten by the restore pass anyway.
func (m *Manager) clearTree(root string) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root {
				dirs = append(dirs, path)
			}
			return nil
		}
		if m.excludes.Match(path) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("[backup] Failed to delete %s during rollback: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("[backup] Walk of %s during rollback: %v", root, err)
	}

	// Children before parents.
	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})

	for _, dir := range dirs {
		// Fails while a directory still holds an excluded file; that is fine.
		_ = os.Remove(dir)
	}
}
