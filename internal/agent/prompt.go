package agent

import (
	"fmt"
	"log"
	"strings"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// maxPromptMemories caps how many stored notes are added to a prompt.
const maxPromptMemories = 5

// PromptContext is everything a prompt is rendered from.
type PromptContext struct {
	Task         *models.Task
	Project      *models.Project
	Dependencies []models.Task
	Memories     []models.Memory
	Instructions string
}

// BuildPrompt assembles the agent prompt for taskID. The memory lookup is
// best-effort: its failure is logged and the prompt is built without it.
func BuildPrompt(db *state.DB, taskID, instructions string) (string, error) {
	pc := PromptContext{Instructions: instructions}
	err := db.View(func(tx *state.Tx) error {
		task, err := tx.GetTask(taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
		}
		pc.Task = task
		if pc.Project, err = tx.GetProject(task.ProjectID); err != nil {
			return err
		}
		for _, id := range task.DependsOn {
			dep, err := tx.GetTask(id)
			if err != nil {
				return err
			}
			if dep != nil {
				pc.Dependencies = append(pc.Dependencies, *dep)
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	memories, err := RelevantMemories(db, pc.Task)
	if err != nil {
		log.Printf("[agent] memory lookup for %s skipped: %v", taskID, err)
	}
	pc.Memories = memories
	return RenderPrompt(pc), nil
}

// RelevantMemories searches the task's project notes for words of the task
// title and returns the best few.
func RelevantMemories(db *state.DB, task *models.Task) ([]models.Memory, error) {
	query := state.MatchAny(task.Title)
	if query == "" {
		return nil, nil
	}
	mems, err := db.SearchMemories(query, state.MemoryFilter{ProjectID: task.ProjectID})
	if err != nil {
		return nil, err
	}
	if len(mems) > maxPromptMemories {
		mems = mems[:maxPromptMemories]
	}
	return mems, nil
}

// RenderPrompt renders the prompt sections in order: task, project,
// dependencies, memories, instructions, the orchestrator contract and the
// completion request.
func RenderPrompt(pc PromptContext) string {
	t := pc.Task
	var b strings.Builder

	fmt.Fprintf(&b, "# Task: %s\n", t.Title)
	fmt.Fprintf(&b, "Task ID: %s\n", t.ID)
	if t.Description != "" {
		fmt.Fprintf(&b, "\n## Description\n%s\n", t.Description)
	}

	if p := pc.Project; p != nil {
		b.WriteString("\n## Project Context\n")
		fmt.Fprintf(&b, "Project: %s (%s)\n", p.Name, p.ID)
		fmt.Fprintf(&b, "Repository: %s\n", p.RepoPath)
		fmt.Fprintf(&b, "Default branch: %s\n", p.DefaultBranch)
	}
	if t.BranchName != "" {
		fmt.Fprintf(&b, "Working branch: %s\n", t.BranchName)
	}

	if len(pc.Dependencies) > 0 {
		b.WriteString("\n## Dependencies\n")
		for _, d := range pc.Dependencies {
			fmt.Fprintf(&b, "- %s (%s): %s\n", d.Title, d.ID, d.Status)
		}
	}

	if len(pc.Memories) > 0 {
		b.WriteString("\n## Relevant Context (from memory)\n")
		for _, m := range pc.Memories {
			fmt.Fprintf(&b, "- **%s**: %s\n", m.Key, m.Value)
		}
	}

	fmt.Fprintf(&b, "\n## Instructions\n%s\n", pc.Instructions)

	b.WriteString("\n## Work Orchestrator Integration\n")
	b.WriteString("You have access to the work-orchestrator tools. Use them to:\n")
	fmt.Fprintf(&b, "- Update your task status: call `update_task_status` with task_id='%s' and status='in-progress' when you begin.\n", t.ID)
	b.WriteString("- Store important context: use `remember` to save decisions, blockers, or notes.\n")
	b.WriteString("- Record your PR: use `update_task_pr_url` with the PR URL after creating one.\n")
	b.WriteString("- Check dependencies: use `get_task` to inspect dependent tasks if needed.\n\n")
	b.WriteString("Do NOT call `launch_agent` or `delegate_task`. You are a subagent, not an orchestrator.\n")

	b.WriteString("\n## Completion\n")
	b.WriteString("When you are finished, provide a brief summary of what was accomplished, ")
	b.WriteString("any files changed, and any issues encountered. ")
	b.WriteString("If you created commits, list them. ")
	b.WriteString("If you opened a PR, include the URL.")

	return b.String()
}
