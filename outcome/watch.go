package outcome

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Result is the outcome a watch resolved to, with the flag file's content.
type Result struct {
	Success bool
	Content string
}

// Await blocks until the success or error flag exists and returns which
// one it was. It is the event-driven alternative to the host application's
// polling loop: the flag directories are watched with fsnotify, and flags
// that already exist when the watch starts are picked up immediately.
func Await(ctx context.Context, successPath, errorPath string) (*Result, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(successPath): {},
		filepath.Dir(errorPath):   {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	// Check after the watch is registered, otherwise a flag written between
	// the check and the registration would be missed.
	if res := checkFlags(successPath, errorPath); res != nil {
		return res, nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			return nil, fmt.Errorf("watch flags: %w", err)

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil, fmt.Errorf("watcher closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if res := checkFlags(successPath, errorPath); res != nil {
				return res, nil
			}
		}
	}
}

// checkFlags reads whichever flag exists. The error flag wins when both
// are momentarily present, since a signaler removes the opposite flag
// right after writing its own.
func checkFlags(successPath, errorPath string) *Result {
	if content, err := os.ReadFile(errorPath); err == nil {
		return &Result{Success: false, Content: string(content)}
	}
	if content, err := os.ReadFile(successPath); err == nil {
		return &Result{Success: true, Content: string(content)}
	}
	return nil
}
