package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"handover/procwait"
	"handover/transfer"
)

// Tunables are the timing and retry knobs. The exact values are tuning,
// not correctness: these defaults match long-running field behavior and
// every one of them can be overridden by a defaults file or a flag.
type Tunables struct {
	CopyRetries    uint64
	CopyRetryDelay time.Duration
	CopyChunkSize  int

	WaitPoll    time.Duration
	WaitTimeout time.Duration
	WaitPolicy  procwait.Policy
}

// DefaultTunables returns the built-in defaults.
func DefaultTunables() Tunables {
	return Tunables{
		CopyRetries:    transfer.DefaultRetries,
		CopyRetryDelay: transfer.DefaultRetryDelay,
		CopyChunkSize:  transfer.DefaultChunkSize,
		WaitPoll:       procwait.DefaultPoll,
		WaitTimeout:    procwait.DefaultTimeout,
		WaitPolicy:     procwait.PolicyGracefulOnly,
	}
}

// tunablesFile is the on-disk shape of the optional defaults file.
type tunablesFile struct {
	CopyRetries        uint64 `json:"copy_retries,omitempty"`
	CopyRetryDelayMs   int    `json:"copy_retry_delay_ms,omitempty"`
	CopyChunkSize      int    `json:"copy_chunk_size,omitempty"`
	WaitPollMs         int    `json:"wait_poll_ms,omitempty"`
	WaitTimeoutSeconds int    `json:"wait_timeout_seconds,omitempty"`
	WaitPolicy         string `json:"wait_policy,omitempty"`
}

// LoadTunables returns the defaults, overridden by whatever the JSON
// defaults file at path sets. A missing file is not an error; a present
// but unreadable or invalid one is.
func LoadTunables(path string) (Tunables, error) {
	t := DefaultTunables()

	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, fmt.Errorf("read tunables file: %w", err)
	}

	var f tunablesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return t, fmt.Errorf("parse tunables file %s: %w", path, err)
	}

	if f.CopyRetries > 0 {
		t.CopyRetries = f.CopyRetries
	}
	if f.CopyRetryDelayMs > 0 {
		t.CopyRetryDelay = time.Duration(f.CopyRetryDelayMs) * time.Millisecond
	}
	if f.CopyChunkSize > 0 {
		t.CopyChunkSize = f.CopyChunkSize
	}
	if f.WaitPollMs > 0 {
		t.WaitPoll = time.Duration(f.WaitPollMs) * time.Millisecond
	}
	if f.WaitTimeoutSeconds > 0 {
		t.WaitTimeout = time.Duration(f.WaitTimeoutSeconds) * time.Second
	}
	if f.WaitPolicy != "" {
		policy, ok := procwait.ParsePolicy(f.WaitPolicy)
		if !ok {
			return t, &Error{Field: "wait_policy", Reason: fmt.Sprintf("unknown policy %q", f.WaitPolicy)}
		}
		t.WaitPolicy = policy
	}

	return t, nil
}
