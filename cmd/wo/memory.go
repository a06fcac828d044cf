package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	memoryCategory string
	memoryGlobal   bool
	memoryRaw      bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Store and recall notes for agents",
	Long: `Memories are key/value notes scoped to a project, or global with
--global. Agents are told about relevant memories in their prompt.`,
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember <key> <value>",
	Short: "Store a note under a key",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMemoryRemember,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <key>",
	Short: "Print the note stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryRecall,
}

var memorySearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Full-text search notes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runMemoryList,
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Delete the note under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryForget,
}

func init() {
	for _, c := range []*cobra.Command{memoryRememberCmd, memoryRecallCmd, memoryForgetCmd} {
		c.Flags().BoolVarP(&memoryGlobal, "global", "g", false, "Use the global scope instead of the project")
	}
	memoryRememberCmd.Flags().StringVarP(&memoryCategory, "category", "c", "", "Category (default \"general\")")
	for _, c := range []*cobra.Command{memorySearchCmd, memoryListCmd} {
		c.Flags().StringVarP(&memoryCategory, "category", "c", "", "Only notes in this category")
	}
	memorySearchCmd.Flags().BoolVar(&memoryRaw, "raw", false, "Pass the query to the full-text engine unchanged")
	memoryCmd.AddCommand(memoryRememberCmd, memoryRecallCmd, memorySearchCmd, memoryListCmd, memoryForgetCmd)
}

// memoryScope is the project a keyed memory command works on.
func memoryScope() string {
	if memoryGlobal {
		return ""
	}
	return projectID()
}

// memoryFilter limits listing to --project when it was given.
func memoryFilter() state.MemoryFilter {
	return state.MemoryFilter{Category: memoryCategory, ProjectID: flagProject}
}

func runMemoryRemember(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		m, err := a.db.Remember(args[0], strings.Join(args[1:], " "), memoryCategory, memoryScope())
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Remembered %s [%s]", m.Key, m.Category), color.FgGreen)
		return nil
	})
}

func runMemoryRecall(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		m, err := a.db.RecallByKey(args[0], memoryScope())
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("nothing remembered under %q", args[0])
		}
		if flagJSON {
			return printJSON(m)
		}
		fmt.Println(m.Value)
		return nil
	})
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if !memoryRaw {
		query = state.MatchAny(query)
		if query == "" {
			return fmt.Errorf("search text has no words of three or more letters")
		}
	}
	return withApp(func(a *app) error {
		memories, err := a.db.SearchMemories(query, memoryFilter())
		if err != nil {
			return err
		}
		return printMemories(memories)
	})
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		memories, err := a.db.ListMemories(memoryFilter())
		if err != nil {
			return err
		}
		return printMemories(memories)
	})
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		ok, err := a.db.Forget(args[0], memoryScope())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("nothing remembered under %q", args[0])
		}
		printStatus("✓", "Forgot "+args[0], color.FgGreen)
		return nil
	})
}

func printMemories(memories []models.Memory) error {
	if flagJSON {
		return printJSON(memories)
	}
	if len(memories) == 0 {
		fmt.Println("No memories.")
		return nil
	}
	for _, m := range memories {
		scope := m.ProjectID
		if scope == "" {
			scope = "global"
		}
		fmt.Printf("%s %s  %s\n", dimStyle.Render("["+scope+"/"+m.Category+"]"), m.Key, m.Value)
	}
	return nil
}
