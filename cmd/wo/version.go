package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/version"
)

// Version returns the current version
func Version() string {
	return version.Get()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		if commit := version.Commit(); commit != "" {
			fmt.Printf("wo version %s (%s)\n", Version(), commit)
			return
		}
		fmt.Printf("wo version %s\n", Version())
	},
}
