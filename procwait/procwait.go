// Package procwait blocks until the previous instance of the host
// application has exited, identified by PID and/or executable name.
package procwait

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Policy controls what happens when the wait times out.
type Policy string

const (
	// PolicyGracefulOnly gives up after the timeout and lets the caller
	// proceed with a warning.
	PolicyGracefulOnly Policy = "graceful-only"

	// PolicyGracefulThenKill requests a graceful close after the first
	// timeout, waits again, then forcefully terminates the process.
	PolicyGracefulThenKill Policy = "graceful-then-kill"
)

const (
	// DefaultPoll is the interval between process table checks.
	DefaultPoll = 300 * time.Millisecond

	// DefaultTimeout bounds a single wait pass.
	DefaultTimeout = 30 * time.Second
)

// ParsePolicy validates a policy string from configuration.
func ParsePolicy(s string) (Policy, bool) {
	switch Policy(s) {
	case PolicyGracefulOnly, PolicyGracefulThenKill:
		return Policy(s), true
	}
	return "", false
}

// inspector abstracts process table lookups so tests can swap in a fake.
type inspector interface {
	// running reports whether the process identified by pid (or, when
	// pid <= 0, any process whose image name matches exeName) exists.
	running(pid int32, exeName string) bool
	terminate(pid int32) error
	kill(pid int32) error
}

// Waiter polls the process table until the watched process is gone.
type Waiter struct {
	Poll    time.Duration
	Timeout time.Duration
	Policy  Policy

	insp inspector
}

// NewWaiter returns a Waiter with the default poll interval, timeout and
// graceful-only policy.
func NewWaiter() *Waiter {
	return &Waiter{
		Poll:    DefaultPoll,
		Timeout: DefaultTimeout,
		Policy:  PolicyGracefulOnly,
		insp:    systemInspector{},
	}
}

// newWithInspector creates a Waiter with a specific inspector (for testing).
func newWithInspector(poll, timeout time.Duration, policy Policy, insp inspector) *Waiter {
	return &Waiter{Poll: poll, Timeout: timeout, Policy: policy, insp: insp}
}

// WaitForExit blocks until the watched process has exited or the timeout
// elapses. When pid > 0 the process is watched by id, and a live pid whose
// image name no longer matches exeName is treated as recycled by the OS,
// hence exited. When pid <= 0 the wait is by executable name only.
//
// The return value is false when the process was still running when every
// wait pass (including any escalation the policy allows) was exhausted.
// That is a warning condition for the caller, not an error: the only error
// returned is ctx.Err() on cancellation.
func (w *Waiter) WaitForExit(ctx context.Context, pid int32, exeName string) (bool, error) {
	ok, err := w.waitPass(ctx, pid, exeName)
	if err != nil || ok {
		return ok, err
	}

	if w.Policy != PolicyGracefulThenKill || pid <= 0 {
		return false, nil
	}

	log.Printf("[procwait] Process %d still running after %v, requesting graceful close", pid, w.Timeout)
	if err := w.insp.terminate(pid); err != nil {
		log.Printf("[procwait] Graceful close request for %d failed: %v", pid, err)
	}

	ok, err = w.waitPass(ctx, pid, exeName)
	if err != nil || ok {
		return ok, err
	}

	log.Printf("[procwait] Process %d ignored graceful close, killing it", pid)
	if err := w.insp.kill(pid); err != nil {
		log.Printf("[procwait] Kill of %d failed: %v", pid, err)
		return false, nil
	}

	return w.waitPass(ctx, pid, exeName)
}

// waitPass is a single poll loop bounded by the configured timeout. The
// first check happens before any sleep, so an already-exited process
// returns immediately.
func (w *Waiter) waitPass(ctx context.Context, pid int32, exeName string) (bool, error) {
	deadline := time.Now().Add(w.Timeout)

	for {
		if !w.insp.running(pid, exeName) {
			return true, nil
		}

		if time.Now().After(deadline) {
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(w.Poll):
		}
	}
}

// systemInspector reads the real process table via gopsutil.
type systemInspector struct{}

func (systemInspector) running(pid int32, exeName string) bool {
	if pid > 0 {
		p, err := process.NewProcess(pid)
		if err != nil {
			// No such pid.
			return false
		}

		name, err := p.Name()
		if err != nil {
			// Can't read the image name (likely a permission denial on a
			// foreign process). Not fatal: assume it is still running and
			// let the timeout decide.
			return true
		}

		return matchesExeName(name, exeName)
	}

	procs, err := process.Processes()
	if err != nil {
		return true
	}

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if matchesExeName(name, exeName) {
			return true
		}
	}

	return false
}

func (systemInspector) terminate(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil // already gone
	}
	return p.Terminate()
}

func (systemInspector) kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

// matchesExeName compares image names case-insensitively with the
// extension stripped, so "SyncDesk.exe" matches "syncdesk".
func matchesExeName(got, want string) bool {
	return strings.EqualFold(stripExt(got), stripExt(want))
}

func stripExt(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
