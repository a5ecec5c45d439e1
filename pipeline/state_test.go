package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	state := &RunState{
		RunID:           "01JTESTRUN",
		PreviousVersion: "1.0.0",
		TargetVersion:   "2.0.0",
		StartedAt:       time.Now().Truncate(time.Second),
		Status:          StatusInProgress,
	}

	if err := writeState(dir, state); err != nil {
		t.Fatalf("writeState: %v", err)
	}

	got, err := readState(dir)
	if err != nil {
		t.Fatalf("readState: %v", err)
	}
	if got == nil {
		t.Fatal("readState returned nil for an existing state")
	}
	if got.RunID != state.RunID || got.Status != state.Status {
		t.Errorf("got %+v, want %+v", got, state)
	}
	if got.PreviousVersion != "1.0.0" || got.TargetVersion != "2.0.0" {
		t.Errorf("versions = %q -> %q", got.PreviousVersion, got.TargetVersion)
	}

	// No tmp file left behind by the atomic write.
	if _, err := os.Stat(stateFilePath(dir) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary state file survived the rename")
	}
}

func TestReadState_Missing(t *testing.T) {
	got, err := readState(t.TempDir())
	if err != nil {
		t.Fatalf("readState: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestReadState_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(stateFilePath(dir), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := readState(dir); err == nil {
		t.Error("expected an error for corrupt state")
	}
}

func TestClearState(t *testing.T) {
	dir := t.TempDir()

	if err := clearState(dir); err != nil {
		t.Errorf("clearState on missing file: %v", err)
	}

	if err := writeState(dir, &RunState{RunID: "x", Status: StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := clearState(dir); err != nil {
		t.Fatalf("clearState: %v", err)
	}
	if _, err := os.Stat(stateFilePath(dir)); !os.IsNotExist(err) {
		t.Error("state file survived clearState")
	}
}

func TestCleanStaleState(t *testing.T) {
	tests := []struct {
		name        string
		status      RunStatus
		age         time.Duration
		wantCleared bool
	}{
		{"recent in_progress is kept", StatusInProgress, time.Minute, false},
		{"stale in_progress is cleared", StatusInProgress, time.Hour, true},
		{"completed is cleared", StatusCompleted, time.Minute, true},
		{"failed is cleared", StatusFailed, time.Minute, true},
		{"rolled_back is cleared", StatusRolledBack, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			state := &RunState{
				RunID:     "prev",
				StartedAt: time.Now().Add(-tt.age),
				Status:    tt.status,
			}
			if err := writeState(dir, state); err != nil {
				t.Fatal(err)
			}

			prev, err := cleanStaleState(dir)
			if err != nil {
				t.Fatalf("cleanStaleState: %v", err)
			}
			if prev == nil || prev.RunID != "prev" {
				t.Errorf("previous state not returned: %+v", prev)
			}

			_, statErr := os.Stat(stateFilePath(dir))
			if tt.wantCleared && !os.IsNotExist(statErr) {
				t.Error("state file should have been cleared")
			}
			if !tt.wantCleared && statErr != nil {
				t.Error("recent in_progress state should have been kept")
			}
		})
	}
}

func TestCleanStaleState_NoFile(t *testing.T) {
	prev, err := cleanStaleState(t.TempDir())
	if err != nil || prev != nil {
		t.Errorf("got %+v, %v; want nil, nil", prev, err)
	}
}

func TestRelaunch_MissingExecutable(t *testing.T) {
	dir := t.TempDir()
	if err := Relaunch(dir, "ghost.exe"); err == nil {
		t.Error("expected an error for a missing executable")
	}
}

func TestRelaunch_StartsProcess(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "app")
	script := "#!/bin/sh\nexit 0\n"
	if err := os.WriteFile(exe, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	if err := Relaunch(dir, "app"); err != nil {
		t.Fatalf("Relaunch: %v", err)
	}
}
