package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags shared across commands
	verbose      bool
	tunablesFile string

	// Version is set by the build process
	Version string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "handover",
	Short: "Handover - In-place update helper for the SyncDesk desktop client",
	Long: `Handover swaps a running desktop installation for a staged new version:
it waits for the application to exit, backs the installation up, copies the
staged files in, rolls back on failure, and restarts the application.`,
}

// Execute adds all child commands to the root command and sets appropriate flags.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&tunablesFile, "tunables", "", "Path to an optional JSON file overriding retry and wait tunables")
}

// GetVersion returns the current version string
func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
