//go:build windows

package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

type platformGate struct{}

func (platformGate) CanWrite(dir string) bool {
	return canWriteProbe(dir)
}

func (platformGate) IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// RelaunchElevated re-invokes the process via ShellExecute with the
// "runas" verb, which triggers the UAC prompt.
func (platformGate) RelaunchElevated(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	verb, err := syscall.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	exePtr, err := syscall.UTF16PtrFromString(exe)
	if err != nil {
		return err
	}
	argsPtr, err := syscall.UTF16PtrFromString(quoteArgs(args))
	if err != nil {
		return err
	}

	if err := windows.ShellExecute(0, verb, exePtr, argsPtr, nil, windows.SW_NORMAL); err != nil {
		return fmt.Errorf("relaunch elevated: %w", err)
	}

	return nil
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t") {
			quoted[i] = `"` + arg + `"`
		} else {
			quoted[i] = arg
		}
	}
	return strings.Join(quoted, " ")
}

type platformShortcuts struct{}

// CreateShortcut writes an Internet Shortcut (.url) pointing at the
// executable. It opens through the shell like a .lnk without needing COM.
func (platformShortcuts) CreateShortcut(targetExe, workingDir, iconSource, destPath string) error {
	if !strings.EqualFold(filepath.Ext(destPath), ".url") {
		destPath += ".url"
	}

	content := fmt.Sprintf(
		"[InternetShortcut]\r\nURL=file:///%s\r\nIconFile=%s\r\nIconIndex=0\r\nWorkingDirectory=%s\r\n",
		filepath.ToSlash(targetExe), iconSource, workingDir,
	)

	if err := os.WriteFile(destPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write shortcut: %w", err)
	}

	return nil
}
