package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	projectName          string
	projectRepo          string
	projectDefaultBranch string
	projectSlackChannel  string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long: `Projects group tasks and worktree slots around one repository.

A "default" project pointing at the configured repository always exists.
Select another project for any command with --project.`,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a project and its task summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProjectShow,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update project fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectUpdate,
}

func init() {
	for _, c := range []*cobra.Command{projectCreateCmd, projectUpdateCmd} {
		c.Flags().StringVar(&projectName, "name", "", "Display name")
		c.Flags().StringVar(&projectRepo, "repo", "", "Repository path")
		c.Flags().StringVar(&projectDefaultBranch, "default-branch", "", "Branch new task worktrees start from")
		c.Flags().StringVar(&projectSlackChannel, "slack-channel", "", "Channel for agent completion notices")
	}
	projectCmd.AddCommand(projectCreateCmd, projectListCmd, projectShowCmd, projectUpdateCmd)
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		p := &models.Project{
			ID:            args[0],
			Name:          projectName,
			RepoPath:      projectRepo,
			DefaultBranch: projectDefaultBranch,
			SlackChannel:  projectSlackChannel,
		}
		if p.RepoPath == "" {
			p.RepoPath = a.cfg.RepoPath
		}
		if err := a.db.CreateProject(p); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(p)
		}
		printStatus("✓", fmt.Sprintf("Created project %s (%s)", p.ID, p.RepoPath), color.FgGreen)
		return nil
	})
}

func runProjectList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		projects, err := a.db.ListProjects()
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(projects)
		}
		for _, p := range projects {
			fmt.Printf("%-16s %-24s %s\n", p.ID, p.Name, dimStyle.Render(p.RepoPath))
		}
		return nil
	})
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		id := projectID()
		if len(args) == 1 {
			id = args[0]
		}
		p, err := a.db.GetProject(id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project not found: %s", id)
		}
		summary, err := a.db.ProjectSummary(id)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(struct {
				*models.Project
				Summary *models.ProjectSummary `json:"summary"`
			}{p, summary})
		}
		fmt.Println(titleStyle.Render(p.Name))
		fmt.Printf("  ID:             %s\n", p.ID)
		fmt.Printf("  Repository:     %s\n", p.RepoPath)
		fmt.Printf("  Default branch: %s\n", p.DefaultBranch)
		if p.SlackChannel != "" {
			fmt.Printf("  Slack channel:  %s\n", p.SlackChannel)
		}
		fmt.Println(summaryBox(p.ID, summary))
		return nil
	})
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		p, err := a.db.GetProject(args[0])
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("project not found: %s", args[0])
		}
		flags := cmd.Flags()
		if flags.Changed("name") {
			p.Name = projectName
		}
		if flags.Changed("repo") {
			p.RepoPath = projectRepo
		}
		if flags.Changed("default-branch") {
			p.DefaultBranch = projectDefaultBranch
		}
		if flags.Changed("slack-channel") {
			p.SlackChannel = projectSlackChannel
		}
		if err := a.db.UpdateProject(p); err != nil {
			return err
		}
		printStatus("✓", "Updated project "+p.ID, color.FgGreen)
		return nil
	})
}
