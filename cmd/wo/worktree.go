package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/worktrees"
)

var (
	worktreeBase         string
	worktreeBranch       string
	worktreeForce        bool
	worktreeDeleteBranch bool
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage per-task worktrees",
	Long: `Per-task worktrees live under the configured worktree directory, one per
task, on branch task/<id>. They are separate from slots: a slot is a
long-lived worktree that hosts many tasks in turn.`,
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "Create a worktree for a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeCreate,
}

var worktreeRemoveCmd = &cobra.Command{
	Use:   "remove <task-id>",
	Short: "Remove a task's worktree",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeRemove,
}

var worktreeStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show git status of a task's worktree",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeStatus,
}

var worktreeCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove worktrees of done tasks",
	Args:  cobra.NoArgs,
	RunE:  runWorktreeCleanup,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List git worktrees with the tasks using them",
	Args:  cobra.NoArgs,
	RunE:  runWorktreeList,
}

var worktreePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune git records of deleted worktrees",
	Args:  cobra.NoArgs,
	RunE:  runWorktreePrune,
}

func init() {
	worktreeCreateCmd.Flags().StringVar(&worktreeBase, "base", "", "Base branch (default: project default branch)")
	worktreeCreateCmd.Flags().StringVar(&worktreeBranch, "branch", "", "Branch name (default: task/<id>)")
	worktreeRemoveCmd.Flags().BoolVar(&worktreeForce, "force", false, "Discard local changes")
	worktreeRemoveCmd.Flags().BoolVar(&worktreeDeleteBranch, "delete-branch", false, "Also delete the task branch")
	worktreeCmd.AddCommand(worktreeCreateCmd, worktreeRemoveCmd, worktreeStatusCmd,
		worktreeCleanupCmd, worktreeListCmd, worktreePruneCmd)
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := getTask(a, args[0])
		if err != nil {
			return err
		}
		project, err := a.db.GetProject(t.ProjectID)
		if err != nil {
			return err
		}
		base := worktreeBase
		if base == "" && project != nil {
			base = project.DefaultBranch
		}
		info, err := a.worktrees.Create(context.Background(), t.ID, worktrees.CreateOptions{
			Repo:   a.repoFor(t.ProjectID),
			Base:   base,
			Branch: worktreeBranch,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(info)
		}
		if info.AlreadyExisted {
			printStatus("•", fmt.Sprintf("Worktree already exists at %s", info.Path), color.FgYellow)
			return nil
		}
		printStatus("✓", fmt.Sprintf("Created %s on %s", info.Path, info.Branch), color.FgGreen)
		return nil
	})
}

func runWorktreeRemove(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := getTask(a, args[0])
		if err != nil {
			return err
		}
		res, err := a.worktrees.Remove(context.Background(), t.ID, a.repoFor(t.ProjectID), worktreeForce, worktreeDeleteBranch)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		printRemoveResult(*res)
		return nil
	})
}

func runWorktreeStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		st, err := a.worktrees.Status(context.Background(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(st)
		}
		if st.Error != "" {
			printStatus("⚠", st.Error, color.FgYellow)
			return nil
		}
		fmt.Printf("%s %s\n%s\n", st.Path, dimStyle.Render("("+st.Branch+")"), st.Status)
		return nil
	})
}

func runWorktreeCleanup(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		results, err := a.worktrees.CleanupDone(context.Background(), pid, a.repoFor(pid))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No worktrees of done tasks.")
		}
		for _, r := range results {
			printRemoveResult(r)
		}
		return nil
	})
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		entries, err := a.worktrees.List(context.Background(), a.repoFor(projectID()))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entries)
		}
		for _, e := range entries {
			task := dimStyle.Render("-")
			if e.TaskID != "" {
				task = fmt.Sprintf("%s %s", coloredTaskStatus(e.TaskStatus), e.TaskID)
			}
			fmt.Printf("%-48s %-24s %s\n", e.Path, e.Branch, task)
		}
		return nil
	})
}

func runWorktreePrune(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if err := a.worktrees.Prune(context.Background(), a.repoFor(projectID())); err != nil {
			return err
		}
		printStatus("✓", "Pruned worktree records", color.FgGreen)
		return nil
	})
}

func printRemoveResult(r worktrees.RemoveResult) {
	if r.Removed {
		printStatus("✓", fmt.Sprintf("Removed %s (%s)", r.Path, r.TaskID), color.FgGreen)
		return
	}
	printStatus("•", fmt.Sprintf("%s: %s", r.TaskID, r.Reason), color.FgYellow)
}
