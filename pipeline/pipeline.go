// Package pipeline runs the update end to end: wait for the host
// application to exit, back up the installation, apply the staged files,
// roll back on failure, signal the outcome, clean up staging, and restart
// the application. Stages run strictly in that order; a failed update must
// leave the installation in a working state.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"handover/apply"
	"handover/backup"
	"handover/config"
	"handover/logger"
	"handover/outcome"
	"handover/procwait"
	"handover/progress"
	"handover/shell"
	"handover/transfer"
)

// Result is the terminal outcome of a run.
type Result int

const (
	// ResultSuccess means the new version is in place and the success flag
	// was written.
	ResultSuccess Result = iota

	// ResultFailed means the update did not take; the error flag was
	// written and the installation was rolled back (or, if rollback itself
	// failed, the backup snapshot was left behind for recovery).
	ResultFailed

	// ResultDeferred means this instance relaunched itself elevated and
	// the update belongs to the new instance now.
	ResultDeferred
)

// Options carries the collaborators a Run needs. Zero values get sensible
// defaults: a discarding notifier, the platform shell integration, and the
// current executable's name.
type Options struct {
	Notifier  progress.Notifier
	Gate      shell.Gate
	Shortcuts shell.ShortcutCreator

	// OwnExeName is the updater's own executable file name, the standing
	// exclusion of every copy and delete pass.
	OwnExeName string
}

// Pipeline is a single update run. It is not reusable and not safe for
// concurrent invocation against the same installation; the host must not
// start it twice.
type Pipeline struct {
	req config.Request
	tun config.Tunables
	log *logger.Logger

	notifier  progress.Notifier
	gate      shell.Gate
	shortcuts shell.ShortcutCreator
	ownExe    string
}

// New assembles a Pipeline for the given request.
func New(req config.Request, tun config.Tunables, log *logger.Logger, opts Options) *Pipeline {
	if opts.Notifier == nil {
		opts.Notifier = progress.Discard
	}
	if opts.Gate == nil {
		opts.Gate = shell.New()
	}
	if opts.Shortcuts == nil {
		opts.Shortcuts = shell.NewShortcutCreator()
	}
	if opts.OwnExeName == "" {
		if exe, err := os.Executable(); err == nil {
			opts.OwnExeName = filepath.Base(exe)
		}
	}

	return &Pipeline{
		req:       req,
		tun:       tun,
		log:       log,
		notifier:  opts.Notifier,
		gate:      opts.Gate,
		shortcuts: opts.Shortcuts,
		ownExe:    opts.OwnExeName,
	}
}

// Run executes the pipeline. The returned error is reserved for fatal
// problems with no recorded outcome (invalid configuration, cancellation,
// an unwritable error flag); every decided update, successful or not,
// returns a Result and a nil error.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	p.req.ApplyDefaults()
	if err := p.req.Validate(); err != nil {
		return ResultFailed, err
	}

	if res, deferred := p.ensureWritable(); deferred {
		return res, nil
	}

	stateDir := filepath.Dir(p.req.LogPath)
	if prev, err := cleanStaleState(stateDir); err != nil {
		p.log.Warnf("Could not read previous run state: %v", err)
	} else if prev != nil && prev.Status == StatusInProgress {
		p.log.Warnf("Previous run %s still marked in progress (started %s)", prev.RunID, prev.StartedAt)
	}

	state := &RunState{
		RunID:           ulid.Make().String(),
		PreviousVersion: p.req.OldVersion,
		TargetVersion:   p.req.NewVersion,
		StartedAt:       timeNow(),
		Status:          StatusInProgress,
	}
	p.saveState(stateDir, state)

	excludes := transfer.NewExcludes()
	excludes.AddName(p.ownExe)
	excludes.AddPath(p.req.SuccessFlag)
	excludes.AddPath(p.req.ErrorFlag)
	excludes.AddPath(p.req.LogPath)
	excludes.AddPath(stateFilePath(stateDir))

	copier := &transfer.Copier{
		Retries:    p.tun.CopyRetries,
		RetryDelay: p.tun.CopyRetryDelay,
		ChunkSize:  p.tun.CopyChunkSize,
	}
	signaler := &outcome.Signaler{
		SuccessPath: p.req.SuccessFlag,
		ErrorPath:   p.req.ErrorFlag,
	}

	// Stage 1: wait for the previous instance to exit. A hung foreign
	// process must not block the update forever, so a timeout is only a
	// warning.
	p.notify("Waiting for %s to exit", p.req.ExeName)
	if err := p.waitForExit(ctx); err != nil {
		return ResultFailed, err
	}

	// Stage 2: backup. Without a trustworthy snapshot no destructive step
	// is allowed to happen.
	p.notify("Backing up the current version")
	backups := backup.NewManager(copier, excludes)
	snap, err := backups.Create(p.req.InstallDir)
	if err != nil {
		p.log.Errorf("Backup failed, update aborted: %v", err)
		return p.finish(ResultFailed, StatusFailed, stateDir, state, signaler,
			fmt.Sprintf("backup failed: %v", err))
	}

	// Stage 3: apply, rolling back on failure.
	p.notify("Installing version %s", p.displayVersion())
	applier := apply.NewApplier(copier, excludes, p.req.ExeName)

	applyErr := applier.Apply(p.req.InstallDir, p.req.StagingDir)
	if applyErr == nil {
		p.log.Infof("Update to %s applied", p.displayVersion())
		snap.Remove()
		return p.succeed(stateDir, state, signaler)
	}

	p.log.Errorf("Apply failed: %v", applyErr)
	p.notify("Update failed, restoring the previous version")

	if rbErr := backups.Rollback(p.req.InstallDir, snap); rbErr != nil {
		// The worst case: neither the old nor the new state. The snapshot
		// stays on disk for manual recovery.
		p.log.Errorf("ROLLBACK FAILED, installation may be inconsistent, snapshot kept at %s: %v", snap.Dir, rbErr)
		return p.finish(ResultFailed, StatusFailed, stateDir, state, signaler, rbErr.Error())
	}

	p.log.Infof("Previous version restored from %s", snap.Dir)
	snap.Remove()
	return p.finish(ResultFailed, StatusRolledBack, stateDir, state, signaler, applyErr.Error())
}

// ensureWritable probes the installation directory and, when it is not
// writable, hands the run over to an elevated instance. Elevation failure
// is a warning: the pipeline proceeds and lets the real file operations
// produce the actual error.
func (p *Pipeline) ensureWritable() (Result, bool) {
	if p.gate.CanWrite(p.req.InstallDir) {
		return ResultSuccess, false
	}

	if p.gate.IsElevated() {
		p.log.Warnf("Install directory %s not writable even when elevated", p.req.InstallDir)
		return ResultSuccess, false
	}

	p.log.Infof("Install directory %s not writable, relaunching elevated", p.req.InstallDir)

	if err := p.gate.RelaunchElevated(os.Args[1:]); err != nil {
		p.log.Warnf("Elevation failed, proceeding without it: %v", err)
		return ResultSuccess, false
	}

	p.notify("Deferring to elevated instance")
	return ResultDeferred, true
}

func (p *Pipeline) waitForExit(ctx context.Context) error {
	waiter := procwait.NewWaiter()
	waiter.Poll = p.tun.WaitPoll
	waiter.Timeout = p.tun.WaitTimeout
	waiter.Policy = p.tun.WaitPolicy

	ok, err := waiter.WaitForExit(ctx, p.req.ParentPID, p.req.ExeName)
	if err != nil {
		return err
	}
	if !ok {
		p.log.Warnf("Process %s (pid %d) still running after %v, proceeding anyway",
			p.req.ExeName, p.req.ParentPID, p.tun.WaitTimeout)
	}
	return nil
}

// succeed records the success outcome and runs the non-fatal tail stages:
// staging cleanup, shortcut creation, relaunch.
func (p *Pipeline) succeed(stateDir string, state *RunState, signaler *outcome.Signaler) (Result, error) {
	if err := signaler.Success(p.req.OldVersion, p.req.NewVersion); err != nil {
		// No recorded outcome; this is the one success path that must
		// escalate to the top level.
		p.log.Errorf("Could not write success flag: %v", err)
		return ResultFailed, err
	}

	state.Status = StatusCompleted
	p.saveState(stateDir, state)

	apply.RemoveStaging(p.req.StagingDir)

	if p.req.CreateShortcut {
		p.createShortcut()
	}

	p.relaunch()
	p.notify("Update to %s complete", p.displayVersion())

	return ResultSuccess, nil
}

// finish records a failure outcome and runs the same tail stages.
func (p *Pipeline) finish(res Result, status RunStatus, stateDir string, state *RunState, signaler *outcome.Signaler, message string) (Result, error) {
	if err := signaler.Error(message); err != nil {
		p.log.Errorf("Could not write error flag: %v", err)
		return res, err
	}

	state.Status = status
	p.saveState(stateDir, state)

	apply.RemoveStaging(p.req.StagingDir)

	// Whatever version is in place now (restored old, or inconsistent) is
	// still the user's application; hand control back.
	p.relaunch()
	p.notify("Update failed: %s", message)

	return res, nil
}

func (p *Pipeline) relaunch() {
	p.notify("Restarting %s", p.req.ExeName)
	if err := Relaunch(p.req.InstallDir, p.req.ExeName); err != nil {
		p.log.Warnf("Relaunch failed: %v", err)
	}
}

func (p *Pipeline) createShortcut() {
	target := filepath.Join(p.req.InstallDir, p.req.ExeName)
	dest := shortcutDestination(p.req.ShortcutName)

	if err := p.shortcuts.CreateShortcut(target, p.req.InstallDir, target, dest); err != nil {
		p.log.Warnf("Shortcut creation failed: %v", err)
		return
	}

	p.log.Infof("Shortcut created at %s", dest)
}

// shortcutDestination puts the shortcut on the user's desktop, falling
// back to the working directory when the home cannot be resolved.
func shortcutDestination(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, "Desktop", name)
}

func (p *Pipeline) saveState(stateDir string, state *RunState) {
	if err := writeState(stateDir, state); err != nil {
		p.log.Warnf("Could not write run state: %v", err)
	}
}

func (p *Pipeline) notify(format string, args ...interface{}) {
	status := fmt.Sprintf(format, args...)
	p.log.Infof("%s", status)
	p.notifier.Notify(status)
}

func (p *Pipeline) displayVersion() string {
	if p.req.NewVersion != "" {
		return p.req.NewVersion
	}
	return "the staged version"
}
