package notify

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// completionSummaryLimit caps the summary quoted in completion messages.
const completionSummaryLimit = 200

var statusEmoji = map[models.TaskStatus]string{
	models.TaskStatusTodo:       ":white_circle:",
	models.TaskStatusInProgress: ":large_blue_circle:",
	models.TaskStatusReview:     ":eyes:",
	models.TaskStatusDone:       ":white_check_mark:",
	models.TaskStatusBlocked:    ":red_circle:",
}

func markdownSection(text string) slack.Block {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// TaskText renders a task status update.
func TaskText(t *models.Task, project string) string {
	emoji, ok := statusEmoji[t.Status]
	if !ok {
		emoji = ":grey_question:"
	}
	return fmt.Sprintf("%s *Task Update*\n*%s* (`%s`)\nStatus: *%s* | Project: %s", emoji, t.Title, t.ID, t.Status, project)
}

// TaskBlocks renders a task status update as blocks.
func TaskBlocks(t *models.Task, project string) []slack.Block {
	return []slack.Block{markdownSection(TaskText(t, project))}
}

// ReviewRequestText asks for a review of the task's branch.
func ReviewRequestText(t *models.Task) string {
	text := fmt.Sprintf(":eyes: *Review Requested*\n*%s* (`%s`)\nBranch: `%s`", t.Title, t.ID, t.BranchName)
	if t.PRURL != "" {
		text += fmt.Sprintf("\n<%s|View Pull Request>", t.PRURL)
	}
	return text
}

// ReviewRequestBlocks renders a review request as blocks.
func ReviewRequestBlocks(t *models.Task) []slack.Block {
	return []slack.Block{markdownSection(ReviewRequestText(t))}
}

// StatusText renders a project progress line from a summary.
func StatusText(project string, s *models.ProjectSummary) string {
	pct := 0.0
	if s.Total > 0 {
		pct = float64(s.Counts[models.TaskStatusDone]) / float64(s.Total) * 100
	}
	return fmt.Sprintf(":bar_chart: *Project Status: %s*\n"+
		":white_check_mark: Done: %d | :eyes: Review: %d | :large_blue_circle: In Progress: %d | "+
		":white_circle: Todo: %d | :red_circle: Blocked: %d\n"+
		"Progress: %.0f%% (%d/%d)",
		project,
		s.Counts[models.TaskStatusDone], s.Counts[models.TaskStatusReview], s.Counts[models.TaskStatusInProgress],
		s.Counts[models.TaskStatusTodo], s.Counts[models.TaskStatusBlocked],
		pct, s.Counts[models.TaskStatusDone], s.Total)
}

// StatusBlocks renders a project progress update as blocks.
func StatusBlocks(project string, s *models.ProjectSummary) []slack.Block {
	return []slack.Block{markdownSection(StatusText(project, s))}
}

// AgentCompletionText reports a finished agent run.
func AgentCompletionText(t *models.Task, run *models.AgentRun, status models.RunStatus, summary string) string {
	emoji := ":x:"
	if status == models.RunStatusCompleted {
		emoji = ":white_check_mark:"
	}
	text := fmt.Sprintf("%s Agent %s for task *%s* (`%s`)\nModel: %s | PID: %s\n",
		emoji, status, t.Title, t.ID, run.Model, run.PID)
	if summary != "" {
		r := []rune(summary)
		if len(r) > completionSummaryLimit {
			r = r[:completionSummaryLimit]
		}
		text += "Summary: " + string(r)
	}
	return text
}
