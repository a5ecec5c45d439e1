package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"handover/outcome"

	"github.com/spf13/cobra"
)

var (
	// Watch command specific flags
	watchInstall string
	watchSuccess string
	watchError   string
	watchTimeout time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Wait for an update outcome and print it",
	Long: `Block until a running update writes its outcome flag, then print it.

This is what a host application (or an operator) uses instead of polling:
it watches the flag files and returns as soon as exactly one of them
appears. Exit code 0 means the update succeeded, 1 means it failed or the
wait timed out.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(watchOutcome())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchInstall, "install", "", "Installation directory whose update to watch (required)")
	watchCmd.Flags().StringVar(&watchSuccess, "success", "", "Success flag file path (default <install>/update.success)")
	watchCmd.Flags().StringVar(&watchError, "error", "", "Error flag file path (default <install>/update.error)")
	watchCmd.Flags().DurationVar(&watchTimeout, "timeout", 5*time.Minute, "How long to wait before giving up")

	watchCmd.MarkFlagRequired("install")
}

func watchOutcome() int {
	successPath := watchSuccess
	if successPath == "" {
		successPath = filepath.Join(watchInstall, "update.success")
	}
	errorPath := watchError
	if errorPath == "" {
		errorPath = filepath.Join(watchInstall, "update.error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, watchTimeout)
	defer cancel()

	result, err := outcome.Await(ctx, successPath, errorPath)
	if err != nil {
		log.Printf("No outcome after %v: %v", watchTimeout, err)
		return 1
	}

	if result.Success {
		fmt.Printf("success: %s\n", result.Content)
		return 0
	}

	fmt.Printf("error: %s\n", result.Content)
	return 1
}
