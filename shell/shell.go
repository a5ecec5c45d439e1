// Package shell holds the OS integration the update pipeline calls but
// does not own: write-permission probing, privilege elevation, and desktop
// shortcut creation. Failures here are warnings to the pipeline, never
// update outcomes.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
)

// Gate answers whether this process may mutate the installation, and
// re-invokes it with escalated privileges when it may not.
type Gate interface {
	// CanWrite probes dir by creating and immediately removing a trivial file.
	CanWrite(dir string) bool

	// IsElevated reports whether the process already runs with escalated
	// privileges.
	IsElevated() bool

	// RelaunchElevated re-invokes the whole process with the original
	// arguments and escalated privileges. On success the current process
	// must exit with code 0 and defer to the elevated instance.
	RelaunchElevated(args []string) error
}

// ShortcutCreator creates a desktop shortcut for the updated application.
type ShortcutCreator interface {
	CreateShortcut(targetExe, workingDir, iconSource, destPath string) error
}

// New returns the Gate for the current platform.
func New() Gate {
	return platformGate{}
}

// NewShortcutCreator returns the ShortcutCreator for the current platform.
func NewShortcutCreator() ShortcutCreator {
	return platformShortcuts{}
}

// canWriteProbe is the shared probe: create a file, close it, remove it.
func canWriteProbe(dir string) bool {
	probe := filepath.Join(dir, fmt.Sprintf(".handover-probe-%d", os.Getpid()))

	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)

	return true
}
