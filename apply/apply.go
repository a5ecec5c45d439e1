// Package apply reconciles the installation directory against the staging
// directory: orphaned files are deleted, changed and new files are copied
// over, and the main executable is verified afterwards.
package apply

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"handover/transfer"
)

// Error is an unrecoverable copy or delete failure during the apply pass.
// The installation may be partially updated when it is returned, so the
// caller must roll back.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExecutableMissingError means the copy pass finished but the main
// executable is not in the installation. A staging set that omits the
// critical binary is treated as a failed apply even when every individual
// copy succeeded.
type ExecutableMissingError struct {
	Exe        string
	InstallDir string
}

func (e *ExecutableMissingError) Error() string {
	return fmt.Sprintf("main executable %s missing from %s after apply", e.Exe, e.InstallDir)
}

// Applier performs the in-place update of an installation directory.
type Applier struct {
	copier   *transfer.Copier
	excludes *transfer.Excludes
	exeName  string
}

// NewApplier creates an Applier. exeName is the main executable the host
// application runs as; it must exist in the installation after Apply.
func NewApplier(copier *transfer.Copier, excludes *transfer.Excludes, exeName string) *Applier {
	return &Applier{copier: copier, excludes: excludes, exeName: exeName}
}

// Apply updates installDir from stagingDir:
//
//  1. Orphan deletion: files present in the installation but absent from
//     staging (case-insensitive) are removed. Failures here are logged and
//     skipped — a stale leftover file must not fail the whole update.
//  2. Copy pass: every staged file is copied over the installation,
//     creating directories as needed. The first failure is fatal.
//  3. Post-condition: the main executable must exist in installDir.
//
// The updater's own executable is skipped in every pass.
//
// Staging existence is the caller's validated precondition: the pipeline
// rejects a missing staging directory during configuration validation,
// before anything destructive runs. A staging directory that vanishes
// between validation and this call surfaces as an *Error from the
// manifest read and rolls back like any other apply failure.
func (a *Applier) Apply(installDir, stagingDir string) error {
	staged, err := transfer.NewManifest(stagingDir)
	if err != nil {
		return &Error{Path: stagingDir, Err: err}
	}

	installed, err := transfer.NewManifest(installDir)
	if err != nil {
		return &Error{Path: installDir, Err: err}
	}

	a.deleteOrphans(installed, staged)

	for _, rel := range staged.Paths() {
		src := filepath.Join(stagingDir, rel)
		if a.excludes.Match(src) {
			continue
		}

		dst := filepath.Join(installDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return &Error{Path: rel, Err: err}
		}

		if err := a.copier.CopyFile(src, dst, true); err != nil {
			return &Error{Path: rel, Err: err}
		}
	}

	exePath := filepath.Join(installDir, a.exeName)
	if _, err := os.Stat(exePath); err != nil {
		return &ExecutableMissingError{Exe: a.exeName, InstallDir: installDir}
	}

	log.Printf("[apply] Applied %d files from %s to %s", staged.Len(), stagingDir, installDir)

	return nil
}

// deleteOrphans removes installed files that are no longer staged.
func (a *Applier) deleteOrphans(installed, staged *transfer.Manifest) {
	for _, rel := range installed.Paths() {
		if staged.Contains(rel) {
			continue
		}

		abs := filepath.Join(installed.Root(), rel)
		if a.excludes.Match(abs) {
			continue
		}

		if err := os.Remove(abs); err != nil {
			log.Printf("[apply] Failed to delete orphan %s: %v", abs, err)
			continue
		}

		log.Printf("[apply] Deleted orphan %s", rel)
	}
}

// RemoveStaging deletes the staging directory. It runs after the update
// outcome is already decided, success or failure, and is never allowed to
// change that outcome — hence best effort.
func RemoveStaging(stagingDir string) {
	if err := os.RemoveAll(stagingDir); err != nil {
		log.Printf("[apply] Failed to remove staging directory %s: %v", stagingDir, err)
	}
}
