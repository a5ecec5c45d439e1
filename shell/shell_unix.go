//go:build !windows

package shell

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type platformGate struct{}

func (platformGate) CanWrite(dir string) bool {
	return canWriteProbe(dir)
}

func (platformGate) IsElevated() bool {
	return os.Geteuid() == 0
}

// RelaunchElevated re-invokes the process through pkexec. Without a polkit
// agent on the session there is no non-interactive way to elevate, so the
// error propagates and the caller proceeds unelevated with a warning.
func (platformGate) RelaunchElevated(args []string) error {
	pkexec, err := exec.LookPath("pkexec")
	if err != nil {
		return fmt.Errorf("no elevation helper available: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	cmd := exec.Command(pkexec, append([]string{exe}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start elevated instance: %w", err)
	}

	return nil
}

type platformShortcuts struct{}

// CreateShortcut writes a freedesktop .desktop entry.
func (platformShortcuts) CreateShortcut(targetExe, workingDir, iconSource, destPath string) error {
	if filepath.Ext(destPath) != ".desktop" {
		destPath += ".desktop"
	}

	name := filepath.Base(targetExe)
	entry := fmt.Sprintf(
		"[Desktop Entry]\nType=Application\nName=%s\nExec=%s\nPath=%s\nIcon=%s\nTerminal=false\n",
		name, targetExe, workingDir, iconSource,
	)

	if err := os.WriteFile(destPath, []byte(entry), 0755); err != nil {
		return fmt.Errorf("write desktop entry: %w", err)
	}

	return nil
}
