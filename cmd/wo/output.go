package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

var taskStatusColor = map[models.TaskStatus]color.Attribute{
	models.TaskStatusTodo:       color.FgWhite,
	models.TaskStatusInProgress: color.FgCyan,
	models.TaskStatusReview:     color.FgYellow,
	models.TaskStatusDone:       color.FgGreen,
	models.TaskStatusBlocked:    color.FgRed,
}

var runStatusColor = map[models.RunStatus]color.Attribute{
	models.RunStatusRunning:   color.FgCyan,
	models.RunStatusCompleted: color.FgGreen,
	models.RunStatusFailed:    color.FgRed,
	models.RunStatusCancelled: color.FgYellow,
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func coloredTaskStatus(s models.TaskStatus) string {
	return color.New(taskStatusColor[s]).Sprintf("%-11s", s)
}

func coloredRunStatus(s models.RunStatus) string {
	return color.New(runStatusColor[s]).Sprintf("%-9s", s)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTaskLine prints one task as a single line, indented by depth.
func printTaskLine(t models.Task, depth int) {
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s P%d %s  %s", indent, coloredTaskStatus(t.Status), t.Priority, t.ID, t.Title)
	if len(t.DependsOn) > 0 {
		line += dimStyle.Render("  needs " + strings.Join(t.DependsOn, ", "))
	}
	fmt.Println(line)
}

func printTasks(tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return
	}
	for _, t := range tasks {
		printTaskLine(t, 0)
	}
}

func printTask(t *models.Task) {
	fmt.Println(titleStyle.Render(t.Title))
	fmt.Printf("  ID:       %s\n", t.ID)
	fmt.Printf("  Project:  %s\n", t.ProjectID)
	fmt.Printf("  Status:   %s\n", coloredTaskStatus(t.Status))
	fmt.Printf("  Priority: P%d\n", t.Priority)
	if t.ParentID != "" {
		fmt.Printf("  Parent:   %s\n", t.ParentID)
	}
	if len(t.DependsOn) > 0 {
		fmt.Printf("  Needs:    %s\n", strings.Join(t.DependsOn, ", "))
	}
	if t.BranchName != "" {
		fmt.Printf("  Branch:   %s\n", t.BranchName)
	}
	if t.WorktreePath != "" {
		fmt.Printf("  Worktree: %s\n", t.WorktreePath)
	}
	if t.PRURL != "" {
		fmt.Printf("  PR:       %s\n", t.PRURL)
	}
	fmt.Printf("  Created:  %s ago\n", formatDuration(time.Since(t.CreatedAt)))
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if len(t.Subtasks) > 0 {
		fmt.Println("\nSubtasks:")
		for _, s := range t.Subtasks {
			printTaskLine(s, 1)
		}
	}
}

func printSlots(slots []models.Slot) {
	if len(slots) == 0 {
		fmt.Println("No worktree slots registered. Run 'wo slot discover' or 'wo slot register'.")
		return
	}
	for _, s := range slots {
		task := "-"
		if s.CurrentTaskID != "" {
			task = s.CurrentTaskID
		}
		glyph, attr := "○", color.FgGreen
		if s.Occupied() {
			glyph, attr = "●", color.FgYellow
		}
		fmt.Printf("%s %-4d %-16s %-24s %s\n", color.New(attr).Sprint(glyph), s.ID, s.Label, task, dimStyle.Render(s.Path))
	}
}

func printRun(r *models.AgentRun) {
	fmt.Printf("Run %s\n", r.ID)
	fmt.Printf("  Task:    %s\n", r.TaskID)
	fmt.Printf("  Status:  %s\n", coloredRunStatus(r.Status))
	fmt.Printf("  PID:     %s\n", r.PID)
	fmt.Printf("  Model:   %s\n", r.Model)
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(r.StartedAt)))
	if r.ExitCode != nil {
		fmt.Printf("  Exit:    %d\n", *r.ExitCode)
	}
	fmt.Printf("  Output:  %s\n", r.OutputFile)
	if r.ResultSummary != "" {
		fmt.Printf("\n%s\n", r.ResultSummary)
	}
}

func printRuns(runs []models.AgentRun) {
	if len(runs) == 0 {
		fmt.Println("No agent runs.")
		return
	}
	for _, r := range runs {
		fmt.Printf("%s %-8s %-24s %s ago\n", coloredRunStatus(r.Status), r.PID, r.TaskID,
			formatDuration(time.Since(r.StartedAt)))
	}
}

// summaryBox renders per-status counts and progress in a bordered box.
func summaryBox(project string, s *models.ProjectSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Project "+project) + "\n")
	for _, status := range models.TaskStatuses {
		fmt.Fprintf(&b, "%s %d\n", coloredTaskStatus(status), s.Counts[status])
	}
	fmt.Fprintf(&b, "%d tasks, %.1f%% done", s.Total, s.ProgressPct)
	return boxStyle.Render(b.String())
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
