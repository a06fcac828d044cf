package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ashewang/work-orchestrator/internal/agent"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// agentFlags are the launch options shared by agent launch and delegate.
type agentFlags struct {
	instructions   string
	model          string
	maxBudget      float64
	permissionMode string
	maxTurns       int
	mcpConfig      string
	visible        bool
}

func (f *agentFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.instructions, "instructions", "i", "", "Extra instructions for the agent")
	fs.StringVarP(&f.model, "model", "m", "", "Model (default from config)")
	fs.Float64Var(&f.maxBudget, "max-budget", 0, "Spend cap in USD forwarded to the agent")
	fs.StringVar(&f.permissionMode, "permission-mode", "", "Agent permission mode (default from config)")
	fs.IntVar(&f.maxTurns, "max-turns", 0, "Maximum agent turns")
	fs.StringVar(&f.mcpConfig, "mcp-config", "", "Tool configuration file passed to the agent")
	fs.BoolVar(&f.visible, "visible", false, "Run the agent in a terminal window")
}

func (f *agentFlags) options(fs *pflag.FlagSet) agent.Options {
	opts := agent.Options{
		Model:          f.model,
		PermissionMode: f.permissionMode,
		MaxTurns:       f.maxTurns,
		MCPConfig:      f.mcpConfig,
		Visible:        f.visible,
	}
	if fs.Changed("max-budget") {
		budget := f.maxBudget
		opts.MaxBudget = &budget
	}
	return opts
}

var (
	launchFlags   agentFlags
	agentRunsAll  bool
	agentRunsStat string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Launch and inspect coding agents",
	Long: `Agents are Claude Code processes working on a task inside the task's
slot. A task has at most one running agent. The background monitor
(wo serve or wo monitor) moves finished runs to completed or failed.`,
}

var agentLaunchCmd = &cobra.Command{
	Use:   "launch <task-id>",
	Short: "Launch an agent for a task that occupies a slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentLaunch,
}

var agentCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task's running agent and free its slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCancel,
}

var agentStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's latest agent run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentStatus,
}

var agentOutputCmd = &cobra.Command{
	Use:   "output <task-id>",
	Short: "Print the output of a task's latest agent run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentOutput,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent runs",
	Args:  cobra.NoArgs,
	RunE:  runAgentList,
}

func init() {
	launchFlags.register(agentLaunchCmd.Flags())
	agentListCmd.Flags().BoolVarP(&agentRunsAll, "all", "a", false, "Include runs of every project")
	agentListCmd.Flags().StringVarP(&agentRunsStat, "status", "s", "", "Only runs with this status")
	agentCmd.AddCommand(agentLaunchCmd, agentCancelCmd, agentStatusCmd, agentOutputCmd, agentListCmd)
}

func runAgentLaunch(cmd *cobra.Command, args []string) error {
	if err := CheckClaudeCLI(); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		run, err := a.agents.Launch(context.Background(), args[0], launchFlags.instructions, launchFlags.options(cmd.Flags()))
		if err != nil {
			return err
		}
		return reportLaunch(run)
	})
}

func runAgentCancel(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		run, err := a.agents.Cancel(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			fmt.Printf("No running agent for %s.\n", args[0])
			return nil
		}
		printStatus("✓", fmt.Sprintf("Cancelled agent %s for %s", run.PID, run.TaskID), color.FgGreen)
		return nil
	})
}

func runAgentStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		run, err := a.agents.LatestRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no agent runs for task %s", args[0])
		}
		if flagJSON {
			return printJSON(run)
		}
		printRun(run)
		return nil
	})
}

func runAgentOutput(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		out, ok, err := a.agents.ReadOutput(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no agent output for task %s", args[0])
		}
		fmt.Print(out)
		return nil
	})
}

func runAgentList(cmd *cobra.Command, args []string) error {
	status := models.RunStatus(agentRunsStat)
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid run status %q", agentRunsStat)
	}
	return withApp(func(a *app) error {
		filter := state.RunFilter{Status: status}
		if !agentRunsAll {
			filter.ProjectID = projectID()
		}
		runs, err := a.agents.ListRuns(filter)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(runs)
		}
		printRuns(runs)
		return nil
	})
}

func reportLaunch(run *models.AgentRun) error {
	if flagJSON {
		return printJSON(run)
	}
	printStatus("✓", fmt.Sprintf("Launched agent for %s (PID %s, model %s)", run.TaskID, run.PID, run.Model), color.FgGreen)
	fmt.Printf("  Output: %s\n", run.OutputFile)
	if !run.PID.Monitorable() {
		printStatus("⚠", "Process id unknown: the run stays running until cancelled", color.FgYellow)
	}
	return nil
}
