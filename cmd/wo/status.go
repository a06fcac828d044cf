package main

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/config"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show project progress, running agents and slots",
	Long: `Display the current state of a project.

Shows:
  - Task counts by status and overall progress
  - Running agents and how long they have run
  - Worktree slots and the tasks occupying them`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and stored state",
	Long: `Check for git and the claude CLI, then compare stored agent runs and
slots with the machine: runs whose process is gone, runs that cannot be
monitored, occupied slots with no running agent, and slot paths missing
from disk. Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		summary, err := a.db.ProjectSummary(pid)
		if err != nil {
			return err
		}
		runs, err := a.db.ListRuns(state.RunFilter{Status: models.RunStatusRunning, ProjectID: pid})
		if err != nil {
			return err
		}
		slots, err := a.pool.List(pid, "")
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(struct {
				Summary *models.ProjectSummary `json:"summary"`
				Running []models.AgentRun      `json:"running"`
				Slots   []models.Slot          `json:"slots"`
			}{summary, runs, slots})
		}

		fmt.Println(summaryBox(pid, summary))
		fmt.Println()
		if len(runs) == 0 {
			fmt.Println("Agents: none running")
		} else {
			fmt.Printf("Agents: %d running\n", len(runs))
			for _, r := range runs {
				title := r.TaskID
				if t, err := a.db.GetTask(r.TaskID); err == nil && t != nil {
					title = t.Title
				}
				fmt.Printf("  %s: \"%s\" (%s, PID %s)\n", r.TaskID, title, formatDuration(time.Since(r.StartedAt)), r.PID)
			}
		}
		fmt.Println()
		fmt.Println("Slots:")
		printSlots(slots)
		return nil
	})
}

func runDoctor(cmd *cobra.Command, args []string) error {
	if _, err := exec.LookPath("git"); err != nil {
		printStatus("✗", "Git not found", color.FgRed)
	} else {
		printStatus("✓", "Git found", color.FgGreen)
	}
	if err := CheckClaudeCLI(); err != nil {
		printStatus("✗", "Claude Code CLI not found", color.FgRed)
	} else {
		printStatus("✓", "Claude Code CLI found", color.FgGreen)
	}

	return withApp(func(a *app) error {
		printStatus("✓", "Database "+a.db.Path(), color.FgGreen)
		if a.sink == nil {
			printStatus("⚠", "Slack token not set (notifications disabled)", color.FgYellow)
		} else {
			printStatus("✓", fmt.Sprintf("Slack token from %s", config.GetSlackTokenSource(a.cfg)), color.FgGreen)
		}

		pid, err := a.project()
		if err != nil {
			return err
		}
		report, err := state.NewRecoveryManager(a.db, nil).Inspect(pid)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(report)
		}
		if report.Empty() {
			printStatus("✓", "Runs and slots agree with the machine", color.FgGreen)
			return nil
		}
		for _, r := range report.DeadRuns {
			printStatus("⚠", fmt.Sprintf("Run for %s: PID %s is gone; 'wo monitor --once' will finish it", r.TaskID, r.PID), color.FgYellow)
		}
		for _, r := range report.UnmonitorableRuns {
			printStatus("⚠", fmt.Sprintf("Run for %s has no known PID; 'wo agent cancel %s' when it is done", r.TaskID, r.TaskID), color.FgYellow)
		}
		for _, s := range report.IdleOccupiedSlots {
			printStatus("⚠", fmt.Sprintf("Slot %s holds %s with no running agent; delegate again or 'wo slot release %s'", s.Label, s.CurrentTaskID, s.Label), color.FgYellow)
		}
		for _, s := range report.MissingSlots {
			printStatus("✗", fmt.Sprintf("Slot %s path is missing: %s", s.Label, s.Path), color.FgRed)
		}
		return nil
	})
}
