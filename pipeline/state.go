package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = "run.state.json"

// timeNow is a seam for tests.
var timeNow = time.Now

// staleRunThreshold is the maximum age of an in_progress state before it
// is considered a leftover from a crashed run and cleaned up.
const staleRunThreshold = 5 * time.Minute

// RunStatus represents the current status of an update run.
type RunStatus string

const (
	StatusInProgress RunStatus = "in_progress"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
	StatusRolledBack RunStatus = "rolled_back"
)

// RunState tracks an in-progress or recently finished update run. Support
// tooling for the host application reads it when diagnosing a bad update.
type RunState struct {
	RunID           string    `json:"run_id"`
	PreviousVersion string    `json:"previous_version"`
	TargetVersion   string    `json:"target_version"`
	StartedAt       time.Time `json:"started_at"`
	Status          RunStatus `json:"status"`
}

// stateFilePath returns the full path to the state file.
func stateFilePath(stateDir string) string {
	return filepath.Join(stateDir, stateFileName)
}

// readState reads the run state from disk.
// Returns nil if the state file does not exist.
func readState(stateDir string) (*RunState, error) {
	data, err := os.ReadFile(stateFilePath(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return &state, nil
}

// writeState atomically writes the run state to disk.
func writeState(stateDir string, state *RunState) error {
	data, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	path := stateFilePath(stateDir)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	return nil
}

// clearState removes the state file.
func clearState(stateDir string) error {
	err := os.Remove(stateFilePath(stateDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	return nil
}

// cleanStaleState removes a leftover in_progress state from a run that
// never reached a terminal status. Terminal states are cleared too; they
// were already consumed by whoever cared.
func cleanStaleState(stateDir string) (*RunState, error) {
	state, err := readState(stateDir)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	if state.Status == StatusInProgress && time.Since(state.StartedAt) <= staleRunThreshold {
		// A recent in_progress state means another run may be live; hand
		// it to the caller to decide.
		return state, nil
	}

	return state, clearState(stateDir)
}
