package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/orchestrator"
)

var (
	delegateFlags agentFlags
	delegateSlot  string
	delegateNext  bool
)

var delegateCmd = &cobra.Command{
	Use:   "delegate [task-id]",
	Short: "Assign a task to a slot and launch an agent on it",
	Long: `Delegate picks a slot (the task's current one, the one named by --slot,
or the first available), assigns the task to it and launches an agent.

With --next, the highest-priority ready task of the project is delegated.
If the launch fails the assignment is kept; run delegate again to retry in
the same slot, or 'wo slot release' to free it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDelegate,
}

func init() {
	delegateFlags.register(delegateCmd.Flags())
	delegateCmd.Flags().StringVar(&delegateSlot, "slot", "", "Slot label to use")
	delegateCmd.Flags().BoolVar(&delegateNext, "next", false, "Delegate the next ready task")
}

func runDelegate(cmd *cobra.Command, args []string) error {
	if delegateNext == (len(args) == 1) {
		return errors.New("give either a task id or --next")
	}
	if err := CheckClaudeCLI(); err != nil {
		return err
	}
	return withApp(func(a *app) error {
		opts := orchestrator.DelegateOptions{
			SlotLabel: delegateSlot,
			Options:   delegateFlags.options(cmd.Flags()),
		}
		ctx := context.Background()
		if delegateNext {
			pid, err := a.project()
			if err != nil {
				return err
			}
			run, err := a.orch.DelegateNext(ctx, pid, delegateFlags.instructions, opts)
			if err != nil {
				return err
			}
			return reportLaunch(run)
		}
		run, err := a.orch.Delegate(ctx, args[0], delegateFlags.instructions, opts)
		if err != nil {
			return err
		}
		return reportLaunch(run)
	})
}
