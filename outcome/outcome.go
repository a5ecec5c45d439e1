// Package outcome reports the update result to the host application
// through two flag files. Exactly one of them exists after a run.
package outcome

import (
	"fmt"
	"log"
	"os"
)

// Signaler writes the success or error flag file. Writing one outcome
// always removes the other, so a stale flag from a previous run can never
// sit alongside a new opposite-outcome flag.
type Signaler struct {
	SuccessPath string
	ErrorPath   string
}

// Success writes the success flag with "{old}|{new}" when both versions
// are known, or the literal token "ok" otherwise, then removes any
// pre-existing error flag.
func (s *Signaler) Success(oldVersion, newVersion string) error {
	content := "ok"
	if oldVersion != "" && newVersion != "" {
		content = oldVersion + "|" + newVersion
	}

	if err := os.WriteFile(s.SuccessPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write success flag: %w", err)
	}

	removeStale(s.ErrorPath)

	return nil
}

// Error writes the error flag with the failure's human-readable message as
// its entire content, then removes any pre-existing success flag.
func (s *Signaler) Error(message string) error {
	if err := os.WriteFile(s.ErrorPath, []byte(message), 0644); err != nil {
		return fmt.Errorf("write error flag: %w", err)
	}

	removeStale(s.SuccessPath)

	return nil
}

func removeStale(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[outcome] Failed to remove stale flag %s: %v", path, err)
	}
}
