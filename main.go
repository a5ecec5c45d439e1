package main

import (
	"os"

	"handover/cmd"
)

// Version is set by the build process
var Version string

func main() {
	cmd.Version = Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
