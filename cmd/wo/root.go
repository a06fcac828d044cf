package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/state"
)

var (
	flagProject string
	flagDBPath  string
	flagJSON    bool
)

// CheckClaudeCLI verifies that the 'claude' CLI is available in PATH.
// Returns an error with installation instructions if not found.
func CheckClaudeCLI() error {
	_, err := exec.LookPath("claude")
	if err != nil {
		return fmt.Errorf("claude CLI not found in PATH\n\n" +
			"wo launches Claude Code agents to work on tasks.\n\n" +
			"Install it with:\n" +
			"  npm install -g @anthropic-ai/claude-code\n\n" +
			"For more information, visit:\n" +
			"  https://docs.anthropic.com/en/docs/claude-code")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "wo",
	Short: "Work orchestrator for coding agents",
	Long: `wo tracks tasks and their dependencies, hands ready tasks to Claude Code
agents running in isolated git worktrees, and reconciles agent processes
with stored state in the background.

Typical flow:
  wo task create "Add login page"
  wo slot discover              # register existing worktrees as slots
  wo delegate add-login-page    # pick a free slot, assign, launch
  wo serve                      # dashboard + reconciliation monitor`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Project id (default \"default\")")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Database path (overrides config and WO_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of text where supported")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)
	rootCmd.AddCommand(slotCmd)
	rootCmd.AddCommand(worktreeCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(delegateCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(slackCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// projectID returns the --project flag or the default project.
func projectID() string {
	if flagProject != "" {
		return flagProject
	}
	return state.DefaultProjectID
}
