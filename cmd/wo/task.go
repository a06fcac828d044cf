package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	taskDescription string
	taskParent      string
	taskDependsOn   []string
	taskPRURL       string
	taskPriority    int
	taskStatusFlag  string
	taskParentFlag  string
	taskRemoveDep   bool
	taskBreakFile   string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long: `Tasks form a dependency graph within a project. A task is ready when it
is todo, top-level, and everything it depends on is done.

Statuses: todo, in-progress, review, done, blocked.
Priorities run from 0 (highest) to 6 (lowest); the default is 3.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a task with its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change a task's status",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskStatus,
}

var taskPriorityCmd = &cobra.Command{
	Use:   "priority <id> <0-6>",
	Short: "Change a task's priority",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskPriority,
}

var taskPRCmd = &cobra.Command{
	Use:   "pr <id> <url>",
	Short: "Link a task to its pull request",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskPR,
}

var taskDependCmd = &cobra.Command{
	Use:   "depend <id> <depends-on-id>",
	Short: "Add or remove a dependency",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskDepend,
}

var taskBreakDownCmd = &cobra.Command{
	Use:   "break-down <id> [subtask-title...]",
	Short: "Split a task into subtasks",
	Long: `Create subtasks under a task, either one per title argument or from a
YAML file:

  subtasks:
    - title: Cart page
      priority: 2
    - title: Payment form
      description: Card and invoice options
      depends_on: [cart-page]`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaskBreakDown,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show a task's audit log",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEvents,
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List tasks ready to be worked on",
	Args:  cobra.NoArgs,
	RunE:  runReady,
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List tasks waiting on unfinished dependencies",
	Args:  cobra.NoArgs,
	RunE:  runBlocked,
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Task description")
	taskCreateCmd.Flags().StringVar(&taskParent, "parent", "", "Parent task id")
	taskCreateCmd.Flags().StringSliceVar(&taskDependsOn, "depends-on", nil, "Task ids this task depends on")
	taskCreateCmd.Flags().StringVar(&taskPRURL, "pr", "", "Pull request URL")
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", models.DefaultPriority, "Priority, 0 (highest) to 6")

	taskListCmd.Flags().StringVarP(&taskStatusFlag, "status", "s", "", "Only tasks with this status")
	taskListCmd.Flags().StringVar(&taskParentFlag, "parent", "", "List subtasks of this task")

	taskDependCmd.Flags().BoolVar(&taskRemoveDep, "remove", false, "Remove the dependency instead")
	taskBreakDownCmd.Flags().StringVarP(&taskBreakFile, "file", "f", "", "YAML file of subtasks")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskStatusCmd, taskPriorityCmd,
		taskPRCmd, taskDependCmd, taskBreakDownCmd, taskDeleteCmd, taskEventsCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		opts := state.CreateTaskOptions{
			ProjectID:   pid,
			Description: taskDescription,
			ParentID:    taskParent,
			DependsOn:   taskDependsOn,
			PRURL:       taskPRURL,
		}
		if cmd.Flags().Changed("priority") {
			opts.Priority = &taskPriority
		}
		t, err := a.db.CreateTask(args[0], opts)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(t)
		}
		printStatus("✓", fmt.Sprintf("Created task %s", t.ID), color.FgGreen)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var status models.TaskStatus
	if taskStatusFlag != "" {
		s, err := models.ParseTaskStatus(taskStatusFlag)
		if err != nil {
			return err
		}
		status = s
	}
	return withApp(func(a *app) error {
		tasks, err := a.db.ListTasks(state.TaskFilter{ProjectID: projectID(), Status: status, ParentID: taskParentFlag})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(tasks)
		}
		printTasks(tasks)
		return nil
	})
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := getTask(a, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(t)
		}
		printTask(t)
		return nil
	})
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	status, err := models.ParseTaskStatus(args[1])
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		t, err := a.db.UpdateTaskStatus(args[0], status)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s is now %s", t.ID, t.Status), color.FgGreen)
		return nil
	})
}

func runTaskPriority(cmd *cobra.Command, args []string) error {
	var p int
	if _, err := fmt.Sscanf(args[1], "%d", &p); err != nil {
		return fmt.Errorf("invalid priority %q: want 0-6", args[1])
	}
	return withApp(func(a *app) error {
		t, err := a.db.UpdateTaskPriority(args[0], p)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s is now P%d", t.ID, t.Priority), color.FgGreen)
		return nil
	})
}

func runTaskPR(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		t, err := a.db.UpdateTaskPRURL(args[0], args[1])
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s linked to %s", t.ID, t.PRURL), color.FgGreen)
		return nil
	})
}

func runTaskDepend(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if taskRemoveDep {
			if _, err := a.db.RemoveDependency(args[0], args[1]); err != nil {
				return err
			}
			printStatus("✓", fmt.Sprintf("%s no longer depends on %s", args[0], args[1]), color.FgGreen)
			return nil
		}
		if _, err := a.db.AddDependency(args[0], args[1]); err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("%s now depends on %s", args[0], args[1]), color.FgGreen)
		return nil
	})
}

func runTaskBreakDown(cmd *cobra.Command, args []string) error {
	specs := make([]models.SubtaskSpec, 0, len(args)-1)
	for _, title := range args[1:] {
		specs = append(specs, models.SubtaskSpec{Title: title})
	}
	if taskBreakFile != "" {
		data, err := os.ReadFile(taskBreakFile)
		if err != nil {
			return fmt.Errorf("read subtasks file: %w", err)
		}
		fromFile, err := parseSubtasks(data)
		if err != nil {
			return err
		}
		specs = append(specs, fromFile...)
	}
	if len(specs) == 0 {
		return errors.New("no subtasks given: pass titles or --file")
	}

	return withApp(func(a *app) error {
		created, err := a.db.BreakDownTask(args[0], specs)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(created)
		}
		printStatus("✓", fmt.Sprintf("Created %d subtasks under %s", len(created), args[0]), color.FgGreen)
		for _, t := range created {
			printTaskLine(t, 1)
		}
		return nil
	})
}

// subtaskFile is the YAML layout accepted by break-down --file. A bare list
// of subtasks is accepted too.
type subtaskFile struct {
	Subtasks []models.SubtaskSpec `yaml:"subtasks"`
}

// parseSubtasks decodes subtask specs from YAML. Every subtask needs a
// title.
func parseSubtasks(data []byte) ([]models.SubtaskSpec, error) {
	var specs []models.SubtaskSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		var file subtaskFile
		if err2 := yaml.Unmarshal(data, &file); err2 != nil {
			return nil, fmt.Errorf("parse subtasks: %w", err2)
		}
		specs = file.Subtasks
	}
	for i, s := range specs {
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("parse subtasks: subtask %d has no title", i+1)
		}
	}
	return specs, nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		deleted, err := a.db.DeleteTask(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: %s", state.ErrTaskNotFound, args[0])
		}
		printStatus("✓", "Deleted "+args[0], color.FgGreen)
		return nil
	})
}

func runTaskEvents(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		if _, err := getTask(a, args[0]); err != nil {
			return err
		}
		events, err := a.db.TaskEvents(args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(events)
		}
		for _, e := range events {
			change := e.NewValue
			if e.OldValue != "" {
				change = e.OldValue + " → " + e.NewValue
			}
			fmt.Printf("%s  %-20s %s\n", dimStyle.Render(e.CreatedAt.Local().Format(time.DateTime)), e.EventType, change)
		}
		return nil
	})
}

func runReady(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		tasks, err := a.db.ReadyTasks(projectID())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(tasks)
		}
		printTasks(tasks)
		return nil
	})
}

func runBlocked(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		tasks, err := a.db.BlockedTasks(projectID())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(tasks)
		}
		printTasks(tasks)
		return nil
	})
}

// getTask returns the task or ErrTaskNotFound.
func getTask(a *app, id string) (*models.Task, error) {
	t, err := a.db.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, id)
	}
	return t, nil
}
