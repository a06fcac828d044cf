package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ashewang/work-orchestrator/internal/agent"
	"github.com/ashewang/work-orchestrator/internal/slots"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// ErrNothingReady is returned by DelegateNext when no task can be delegated.
var ErrNothingReady = errors.New("no ready tasks to delegate")

// DelegateOptions controls one delegation. Zero agent options fall back to
// the agent manager's defaults, except MaxTurns which defaults to
// DefaultMaxTurns.
type DelegateOptions struct {
	// SlotLabel names the slot to use. Empty picks the first available
	// slot of the task's project.
	SlotLabel string
	agent.Options
}

// Orchestrator delegates tasks to agents.
type Orchestrator struct {
	db     *state.DB
	pool   *slots.Pool
	agents *agent.Manager
	opts   orchestratorOptions
}

// New creates an orchestrator over the given store, slot pool and agent
// manager.
func New(db *state.DB, pool *slots.Pool, agents *agent.Manager, opts ...Option) *Orchestrator {
	o := orchestratorOptions{
		maxTurns:      DefaultMaxTurns,
		mcpConfigName: DefaultMCPConfigName,
		fileExists: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Orchestrator{db: db, pool: pool, agents: agents, opts: o}
}

// ReadyTasks returns the project's tasks that can start now.
func (o *Orchestrator) ReadyTasks(projectID string) ([]models.Task, error) {
	return o.db.ReadyTasks(projectID)
}

// Delegate selects a slot for the task, assigns the task to it and
// launches an agent there.
//
// The task must exist and have no running agent. A task that already
// occupies a slot, for example after a failed launch, reuses that slot.
func (o *Orchestrator) Delegate(ctx context.Context, taskID, instructions string, opts DelegateOptions) (*models.AgentRun, error) {
	var (
		task    *models.Task
		project *models.Project
		current *models.Slot
	)
	err := o.db.View(func(tx *state.Tx) error {
		var err error
		if task, err = tx.GetTask(taskID); err != nil || task == nil {
			return err
		}
		running, err := tx.RunningRunForTask(taskID)
		if err != nil {
			return err
		}
		if running != nil {
			return &state.AgentRunningError{TaskID: taskID, PID: running.PID}
		}
		if project, err = tx.GetProject(task.ProjectID); err != nil {
			return err
		}
		current, err = tx.SlotForTask(taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}

	slot, err := o.selectSlot(task, current, opts.SlotLabel)
	if err != nil {
		return nil, err
	}
	if current == nil || current.ID != slot.ID {
		if slot, err = o.pool.Assign(taskID, slot.ID); err != nil {
			return nil, err
		}
	}

	agentOpts := opts.Options
	if agentOpts.MaxTurns == 0 {
		agentOpts.MaxTurns = o.opts.maxTurns
	}
	if agentOpts.MCPConfig == "" && project != nil {
		agentOpts.MCPConfig = o.resolveMCPConfig(project.RepoPath)
	}

	run, err := o.agents.Launch(ctx, taskID, instructions, agentOpts)
	if err != nil {
		log.Printf("[orchestrator] launch for %s failed, %s stays assigned: %v", taskID, slot.Label, err)
		return nil, err
	}
	log.Printf("[orchestrator] delegated %s to %s (run %s)", taskID, slot.Label, run.ID)
	return run, nil
}

// DelegateNext delegates the highest-priority ready task of a project. It
// returns ErrNothingReady when no task is ready.
func (o *Orchestrator) DelegateNext(ctx context.Context, projectID, instructions string, opts DelegateOptions) (*models.AgentRun, error) {
	ready, err := o.ReadyTasks(projectID)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		return nil, fmt.Errorf("%w in project '%s'", ErrNothingReady, projectID)
	}
	return o.Delegate(ctx, ready[0].ID, instructions, opts)
}

// selectSlot picks the slot the task will run in. A requested label must
// name an existing slot that is free or already held by the task.
func (o *Orchestrator) selectSlot(task *models.Task, current *models.Slot, label string) (*models.Slot, error) {
	if label == "" {
		if current != nil {
			return current, nil
		}
		return o.pool.FirstAvailable(task.ProjectID)
	}

	slot, err := o.pool.GetByLabel(task.ProjectID, label)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: '%s' in project '%s'", state.ErrSlotNotFound, label, task.ProjectID)
	}
	if slot.Occupied() && slot.CurrentTaskID != task.ID {
		return nil, &state.SlotOccupiedError{Label: slot.Label, TaskID: slot.CurrentTaskID}
	}
	return slot, nil
}

// resolveMCPConfig returns the repository's tool configuration if present.
func (o *Orchestrator) resolveMCPConfig(repo string) string {
	if repo == "" || o.opts.mcpConfigName == "" {
		return ""
	}
	path := filepath.Join(repo, o.opts.mcpConfigName)
	if !o.opts.fileExists(path) {
		return ""
	}
	return path
}
