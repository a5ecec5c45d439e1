package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handover/config"
	"handover/logger"
	"handover/outcome"
	"handover/pipeline"
	"handover/procwait"
	"handover/progress"

	"github.com/spf13/cobra"
)

var (
	// Run command specific flags
	installDir   string
	stagingDir   string
	exeName      string
	parentPID    int32
	successFlag  string
	errorFlag    string
	logPath      string
	oldVersion   string
	newVersion   string
	shortcut     bool
	shortcutName string
	progressAddr string

	// Tunable overrides; zero means "keep the default or file value"
	copyRetries    uint64
	copyRetryDelay time.Duration
	waitTimeout    time.Duration
	waitPoll       time.Duration
	waitPolicy     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply a staged update to the installation",
	Long: `Apply a staged update to a live installation, in place.

The staging directory must already contain the complete new version. Handover
waits for the running application to exit, backs the installation up, mirrors
the staged files into it, and restarts the application. On any copy failure
the backup is restored so the user never ends up with a broken installation.

The outcome is reported through flag files the host application polls after
restart: exactly one of the success flag (default <install>/update.success)
and the error flag (default <install>/update.error) exists when handover
exits.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runUpdate())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Run-specific flags
	runCmd.Flags().StringVar(&installDir, "install", "", "Installation directory to update in place (required)")
	runCmd.Flags().StringVar(&stagingDir, "staging", "", "Directory holding the staged new version (required)")
	runCmd.Flags().StringVar(&exeName, "exe", "", "Main executable file name, e.g. syncdesk.exe (required)")
	runCmd.Flags().Int32Var(&parentPID, "pid", 0, "PID of the running application instance to wait for (0 = wait by name only)")
	runCmd.Flags().StringVar(&successFlag, "success", "", "Success flag file path (default <install>/update.success)")
	runCmd.Flags().StringVar(&errorFlag, "error", "", "Error flag file path (default <install>/update.error)")
	runCmd.Flags().StringVar(&logPath, "log", "", "Append-only log file path (default <install>/handover.log)")
	runCmd.Flags().StringVar(&oldVersion, "old", "", "Version being replaced, recorded in the success flag")
	runCmd.Flags().StringVar(&newVersion, "new", "", "Version being installed, recorded in the success flag")
	runCmd.Flags().BoolVar(&shortcut, "shortcut", false, "Create a desktop shortcut after a successful update")
	runCmd.Flags().StringVar(&shortcutName, "shortcut-name", "", "Shortcut display name (default: executable name without extension)")
	runCmd.Flags().StringVar(&progressAddr, "progress-addr", "", "Address to serve websocket progress updates on, e.g. 127.0.0.1:0 (disabled when empty)")

	runCmd.Flags().Uint64Var(&copyRetries, "copy-retries", 0, "Attempts per file copy before the update is declared failed")
	runCmd.Flags().DurationVar(&copyRetryDelay, "copy-retry-delay", 0, "Delay between copy attempts")
	runCmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "How long to wait for the application to exit before proceeding")
	runCmd.Flags().DurationVar(&waitPoll, "wait-poll", 0, "Poll interval while waiting for the application to exit")
	runCmd.Flags().StringVar(&waitPolicy, "wait-policy", "", "Wait policy: graceful-only or graceful-then-kill")

	runCmd.MarkFlagRequired("install")
	runCmd.MarkFlagRequired("staging")
	runCmd.MarkFlagRequired("exe")
}

func runUpdate() int {
	req := config.Request{
		InstallDir:     installDir,
		StagingDir:     stagingDir,
		ExeName:        exeName,
		ParentPID:      parentPID,
		SuccessFlag:    successFlag,
		ErrorFlag:      errorFlag,
		LogPath:        logPath,
		OldVersion:     oldVersion,
		NewVersion:     newVersion,
		CreateShortcut: shortcut,
		ShortcutName:   shortcutName,
	}
	req.ApplyDefaults()

	tun, err := config.LoadTunables(tunablesFile)
	if err != nil {
		log.Printf("Failed to load tunables from %s: %v", tunablesFile, err)
		return 1
	}
	applyTunableFlags(&tun)

	runLog, cleanup := buildLogger(req.LogPath)
	defer cleanup()

	runLog.Infof("Handover version %s starting (install=%s staging=%s)", GetVersion(), req.InstallDir, req.StagingDir)

	notifier, stopProgress := buildNotifier(runLog)
	defer stopProgress()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(req, tun, runLog, pipeline.Options{Notifier: notifier})

	res, err := p.Run(ctx)
	if err != nil {
		runLog.Errorf("Update aborted: %v", err)
		// No outcome was recorded; write the error flag here so the host
		// does not wait on a run that already died.
		signaler := &outcome.Signaler{SuccessPath: req.SuccessFlag, ErrorPath: req.ErrorFlag}
		if ferr := signaler.Error(err.Error()); ferr != nil {
			runLog.Errorf("Could not write error flag: %v", ferr)
		}
		return 1
	}

	switch res {
	case pipeline.ResultSuccess:
		runLog.Infof("Update complete")
	case pipeline.ResultDeferred:
		runLog.Infof("Deferred to elevated instance")
	default:
		runLog.Errorf("Update failed, previous version left in place")
	}

	// The pipeline completed and an outcome flag is on disk either way;
	// the host reads the result from the flags, not the exit code. A
	// non-zero exit is reserved for runs that died before recording
	// anything.
	return 0
}

// applyTunableFlags lets explicit command-line values win over both the
// defaults and the tunables file.
func applyTunableFlags(tun *config.Tunables) {
	if copyRetries > 0 {
		tun.CopyRetries = copyRetries
	}
	if copyRetryDelay > 0 {
		tun.CopyRetryDelay = copyRetryDelay
	}
	if waitTimeout > 0 {
		tun.WaitTimeout = waitTimeout
	}
	if waitPoll > 0 {
		tun.WaitPoll = waitPoll
	}
	if waitPolicy != "" {
		if policy, ok := procwait.ParsePolicy(waitPolicy); ok {
			tun.WaitPolicy = policy
		} else {
			log.Printf("Unknown wait policy %q, keeping %q", waitPolicy, tun.WaitPolicy)
		}
	}
}

// buildLogger assembles the run logger: the append-only file the host can
// inspect afterwards, plus the Axiom sink when ingest credentials are set.
// Console mirroring is opt-in via --verbose; the host usually launches us
// detached, so the file is the record that matters.
func buildLogger(path string) (*logger.Logger, func()) {
	runLog := logger.New()
	runLog.SetConsole(verbose)

	fileSink, err := logger.NewFileSink(path)
	if err != nil {
		log.Printf("Could not open log file %s, logging to console only: %v", path, err)
		runLog.SetConsole(true)
	} else {
		runLog.AddSink(fileSink)
	}

	if token := os.Getenv("HANDOVER_AXIOM_TOKEN"); token != "" {
		dataset := os.Getenv("HANDOVER_AXIOM_DATASET")
		if dataset == "" {
			dataset = "handover"
		}

		axiomSink, err := logger.NewAxiomSink(token, dataset)
		if err != nil {
			log.Printf("Could not set up Axiom ingest: %v", err)
		} else {
			runLog.AddSink(axiomSink)
		}
	}

	return runLog, func() {
		if err := runLog.Close(); err != nil {
			log.Printf("Log shutdown error: %v", err)
		}
	}
}

// buildNotifier wires the progress fanout the pipeline reports into. When
// --progress-addr is set, a websocket broadcaster is subscribed to it so
// connected clients see every status; without it the fanout simply has no
// observers.
func buildNotifier(runLog *logger.Logger) (progress.Notifier, func()) {
	fanout := progress.NewFanout()

	if progressAddr == "" {
		return fanout, fanout.Close
	}

	broadcaster := progress.NewSocketBroadcaster()
	if err := broadcaster.Start(progressAddr); err != nil {
		runLog.Warnf("Could not serve progress updates on %s: %v", progressAddr, err)
		return fanout, fanout.Close
	}

	runLog.Infof("Progress updates available at ws://%s/progress", broadcaster.Addr())

	updates := fanout.Subscribe(64)
	go func() {
		for status := range updates {
			broadcaster.Notify(status)
		}
	}()

	return fanout, func() {
		fanout.Close()
		if err := broadcaster.Close(); err != nil {
			runLog.Warnf("Progress shutdown error: %v", err)
		}
	}
}
