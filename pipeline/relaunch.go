package pipeline

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Relaunch starts the updated executable as a new, independent process
// with its working directory set to installDir. By the time this runs the
// update outcome is already recorded; a relaunch failure is the caller's
// warning, never a changed outcome.
func Relaunch(installDir, exeName string) error {
	exePath := filepath.Join(installDir, exeName)

	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("executable %s not found: %w", exePath, err)
	}

	cmd := exec.Command(exePath)
	cmd.Dir = installDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", exePath, err)
	}

	// The updater exits right after; the application must not end up tied
	// to this process.
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("release %s: %w", exePath, err)
	}

	return nil
}
