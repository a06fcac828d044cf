package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	slotLabel  string
	slotBranch string
	slotStatus string
)

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Manage worktree slots",
	Long: `Slots are pre-existing git worktrees that agents run in. Each slot hosts
at most one task at a time; delegation picks the first available slot.`,
}

var slotRegisterCmd = &cobra.Command{
	Use:   "register <path>",
	Short: "Register a worktree as a slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlotRegister,
}

var slotDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Register every worktree of the project repository",
	Args:  cobra.NoArgs,
	RunE:  runSlotDiscover,
}

var slotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List slots",
	Args:  cobra.NoArgs,
	RunE:  runSlotList,
}

var slotAssignCmd = &cobra.Command{
	Use:   "assign <task-id> <slot>",
	Short: "Assign a task to a slot by id or label",
	Args:  cobra.ExactArgs(2),
	RunE:  runSlotAssign,
}

var slotReleaseCmd = &cobra.Command{
	Use:   "release <slot>",
	Short: "Free a slot by id or label",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlotRelease,
}

func init() {
	slotRegisterCmd.Flags().StringVar(&slotLabel, "label", "", "Slot label (default: directory name)")
	slotRegisterCmd.Flags().StringVar(&slotBranch, "branch", "", "Branch checked out in the worktree")
	slotListCmd.Flags().StringVarP(&slotStatus, "status", "s", "", "Only slots with this status (available, occupied)")
	slotCmd.AddCommand(slotRegisterCmd, slotDiscoverCmd, slotListCmd, slotAssignCmd, slotReleaseCmd)
}

func runSlotRegister(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		slot, err := a.pool.Register(pid, args[0], slotLabel, slotBranch)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(slot)
		}
		printStatus("✓", fmt.Sprintf("Registered slot %d (%s) at %s", slot.ID, slot.Label, slot.Path), color.FgGreen)
		return nil
	})
}

func runSlotDiscover(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		pid, err := a.project()
		if err != nil {
			return err
		}
		added, err := a.pool.Discover(context.Background(), pid, a.repoFor(pid))
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(added)
		}
		if len(added) == 0 {
			fmt.Println("No new worktrees found.")
			return nil
		}
		for _, s := range added {
			printStatus("✓", fmt.Sprintf("Registered %s (%s)", s.Label, s.Path), color.FgGreen)
		}
		return nil
	})
}

func runSlotList(cmd *cobra.Command, args []string) error {
	status := models.SlotStatus(slotStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid slot status %q", slotStatus)
	}
	return withApp(func(a *app) error {
		slots, err := a.pool.List(projectID(), status)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(slots)
		}
		printSlots(slots)
		return nil
	})
}

func runSlotAssign(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		slot, err := resolveSlot(a, args[1])
		if err != nil {
			return err
		}
		slot, err = a.pool.Assign(args[0], slot.ID)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Assigned %s to %s", args[0], slot.Label), color.FgGreen)
		return nil
	})
}

func runSlotRelease(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		slot, err := resolveSlot(a, args[0])
		if err != nil {
			return err
		}
		if _, err := a.pool.Release(slot.ID); err != nil {
			return err
		}
		printStatus("✓", "Released "+slot.Label, color.FgGreen)
		return nil
	})
}

// resolveSlot finds a slot by numeric id, or by label in the --project
// project.
func resolveSlot(a *app, ref string) (*models.Slot, error) {
	var (
		slot *models.Slot
		err  error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		slot, err = a.pool.Get(id)
	} else {
		slot, err = a.pool.GetByLabel(projectID(), ref)
	}
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: '%s' in project '%s'", state.ErrSlotNotFound, ref, projectID())
	}
	return slot, nil
}
