// Package config resolves and validates the update request. Everything
// here runs before the first destructive step: an invalid request aborts
// the run with a *Error and the installation untouched.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Error is a fatal configuration problem.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Request is the immutable update configuration, resolved once at startup
// from the argument contract the host application invokes us with.
type Request struct {
	// InstallDir is the live installation being updated in place.
	InstallDir string

	// StagingDir already holds the new version's files; it is the source
	// of truth for the update and is removed afterwards.
	StagingDir string

	// ExeName is the main executable's file name, e.g. "syncdesk.exe".
	ExeName string

	// ParentPID is the host application instance to wait for. Zero means
	// wait by executable name only.
	ParentPID int32

	// SuccessFlag and ErrorFlag are the files the host polls for the outcome.
	SuccessFlag string
	ErrorFlag   string

	// LogPath is the append-only run log.
	LogPath string

	OldVersion string
	NewVersion string

	CreateShortcut bool
	ShortcutName   string
}

// ApplyDefaults fills the optional paths relative to the install directory.
func (r *Request) ApplyDefaults() {
	if r.SuccessFlag == "" {
		r.SuccessFlag = filepath.Join(r.InstallDir, "update.success")
	}
	if r.ErrorFlag == "" {
		r.ErrorFlag = filepath.Join(r.InstallDir, "update.error")
	}
	if r.LogPath == "" {
		r.LogPath = filepath.Join(r.InstallDir, "handover.log")
	}
	if r.ShortcutName == "" {
		r.ShortcutName = strings.TrimSuffix(r.ExeName, filepath.Ext(r.ExeName))
	}
}

// Validate checks the request invariants: install and staging are distinct
// absolute paths, both exist, and the executable name is a bare file name.
func (r *Request) Validate() error {
	if r.InstallDir == "" {
		return &Error{Field: "install", Reason: "installation directory is required"}
	}
	if !filepath.IsAbs(r.InstallDir) {
		return &Error{Field: "install", Reason: fmt.Sprintf("%q is not an absolute path", r.InstallDir)}
	}

	if r.StagingDir == "" {
		return &Error{Field: "staging", Reason: "staging directory is required"}
	}
	if !filepath.IsAbs(r.StagingDir) {
		return &Error{Field: "staging", Reason: fmt.Sprintf("%q is not an absolute path", r.StagingDir)}
	}

	if strings.EqualFold(filepath.Clean(r.InstallDir), filepath.Clean(r.StagingDir)) {
		return &Error{Field: "staging", Reason: "staging and install directories must be distinct"}
	}

	if info, err := os.Stat(r.InstallDir); err != nil || !info.IsDir() {
		return &Error{Field: "install", Reason: fmt.Sprintf("%q does not exist or is not a directory", r.InstallDir)}
	}

	if info, err := os.Stat(r.StagingDir); err != nil || !info.IsDir() {
		return &Error{Field: "staging", Reason: fmt.Sprintf("%q does not exist or is not a directory", r.StagingDir)}
	}

	if r.ExeName == "" {
		return &Error{Field: "exe", Reason: "main executable name is required"}
	}
	if r.ExeName != filepath.Base(r.ExeName) {
		return &Error{Field: "exe", Reason: fmt.Sprintf("%q must be a bare file name, not a path", r.ExeName)}
	}

	return nil
}
