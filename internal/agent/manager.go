// Package agent manages the lifecycle of external coding-agent runs:
// prompt assembly, background and visible launch, cancellation and run
// queries.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/ashewang/work-orchestrator/internal/exec"
	"github.com/ashewang/work-orchestrator/internal/slots"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// Config configures a Manager. Zero fields take defaults.
type Config struct {
	// OutputDir receives agent output, pid and script files. Defaults to
	// agent_output next to the database.
	OutputDir string
	// Defaults fill options a launch leaves empty.
	Defaults Options
	// Terminal opens visible launches. Visible launches fail without one.
	Terminal TerminalHost
	// Starter starts background agents. Defaults to os/exec.
	Starter exec.Starter
	// Signaler delivers cancel signals. Defaults to syscall.Kill.
	Signaler exec.Signaler
	// Registry tracks live handles. A new one is created if nil.
	Registry *ProcessRegistry
	// PIDWait bounds the visible-mode pid hand-off.
	PIDWait     time.Duration
	PIDInterval time.Duration
}

// Manager launches and cancels agent runs.
type Manager struct {
	db       *state.DB
	pool     *slots.Pool
	cfg      Config
	registry *ProcessRegistry
}

// NewManager creates a run manager.
func NewManager(db *state.DB, pool *slots.Pool, cfg Config) *Manager {
	if cfg.OutputDir == "" {
		cfg.OutputDir = filepath.Join(filepath.Dir(db.Path()), "agent_output")
	}
	if cfg.Defaults.Model == "" {
		cfg.Defaults.Model = DefaultModel
	}
	if cfg.Defaults.PermissionMode == "" {
		cfg.Defaults.PermissionMode = DefaultPermissionMode
	}
	runner := exec.NewRunner()
	if cfg.Starter == nil {
		cfg.Starter = runner
	}
	if cfg.Signaler == nil {
		cfg.Signaler = runner
	}
	if cfg.Registry == nil {
		cfg.Registry = NewProcessRegistry()
	}
	if cfg.PIDWait == 0 {
		cfg.PIDWait = DefaultPIDWait
	}
	if cfg.PIDInterval == 0 {
		cfg.PIDInterval = DefaultPIDInterval
	}
	return &Manager{db: db, pool: pool, cfg: cfg, registry: cfg.Registry}
}

// Registry returns the live-handle registry shared with the monitor.
func (m *Manager) Registry() *ProcessRegistry {
	return m.registry
}

// OutputDir returns where run files are written.
func (m *Manager) OutputDir() string {
	return m.cfg.OutputDir
}

// Launch starts an agent for a task that occupies a slot. The run record,
// the todo to in-progress move and the launch event are written in one
// transaction once the process has started.
func (m *Manager) Launch(ctx context.Context, taskID, instructions string, opts Options) (*models.AgentRun, error) {
	opts = opts.merge(m.cfg.Defaults)

	var slot *models.Slot
	err := m.db.View(func(tx *state.Tx) error {
		var err error
		slot, err = launchPreconditions(tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(m.db, taskID, instructions)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	files := newRunFiles(m.cfg.OutputDir, taskID, time.Now())

	run := &models.AgentRun{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		SlotID:       slot.ID,
		Instructions: instructions,
		Model:        opts.Model,
		MaxBudget:    opts.MaxBudget,
		OutputFile:   files.Output,
	}

	var proc exec.Process
	if opts.Visible {
		run.PID, err = m.launchVisible(ctx, taskID, slot.Path, files, ClaudeArgs(prompt, opts, false))
	} else {
		proc, err = m.cfg.Starter.Start(exec.StartSpec{
			Name:       ClaudeBinary,
			Args:       ClaudeArgs(prompt, opts, true),
			Dir:        slot.Path,
			OutputPath: files.Output,
		})
		if proc != nil {
			run.PID = models.PID(proc.Pid())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("launch agent for %s: %w", taskID, err)
	}

	err = m.db.Transaction(func(tx *state.Tx) error {
		if _, err := launchPreconditions(tx, taskID); err != nil {
			return err
		}
		if err := tx.InsertRun(run); err != nil {
			return err
		}
		task, err := tx.GetTask(taskID)
		if err != nil {
			return err
		}
		if task.Status == models.TaskStatusTodo {
			if _, err := tx.UpdateTaskStatus(taskID, models.TaskStatusInProgress); err != nil {
				return err
			}
		}
		return tx.LogEvent(taskID, models.EventAgentLaunched, "", "PID "+run.PID.String())
	})
	if err != nil {
		m.terminate(run.PID)
		return nil, err
	}

	if proc != nil {
		m.registry.Add(run.ID, proc)
	}
	log.Printf("[agent] launched run %s for task %s in %s (PID %s)", run.ID, taskID, slot.Label, run.PID)
	return m.db.GetRun(run.ID)
}

// launchPreconditions returns the task's slot. The task must exist, occupy
// a slot and have no running run.
func launchPreconditions(tx *state.Tx, taskID string) (*models.Slot, error) {
	task, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}
	slot, err := tx.SlotForTask(taskID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, &state.NotAssignedError{TaskID: taskID}
	}
	running, err := tx.RunningRunForTask(taskID)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, &state.AgentRunningError{TaskID: taskID, PID: running.PID}
	}
	return slot, nil
}

// launchVisible writes the launcher script, opens it in a terminal and
// waits for the script to report its pid. A missing pid is not an error:
// the run is recorded as unmonitorable.
func (m *Manager) launchVisible(ctx context.Context, taskID, dir string, files runFiles, args []string) (models.PID, error) {
	if m.cfg.Terminal == nil {
		return 0, ErrNoTerminal
	}
	script := TerminalScript(taskID, dir, files.PID, files.Output, args)
	if err := os.WriteFile(files.Script, []byte(script), 0755); err != nil {
		return 0, fmt.Errorf("write launcher script: %w", err)
	}
	if err := m.cfg.Terminal.Open(ctx, files.Script); err != nil {
		return 0, err
	}

	pid, err := WaitForPIDFile(ctx, files.PID, m.cfg.PIDWait, m.cfg.PIDInterval)
	if err != nil {
		log.Printf("[agent] warning: could not read pid file for task %s, run is unmonitorable: %v", taskID, err)
		return models.Unmonitorable, nil
	}
	return pid, nil
}

// terminate stops a process whose run could not be recorded.
func (m *Manager) terminate(pid models.PID) {
	if !pid.Monitorable() {
		return
	}
	if err := m.cfg.Signaler.Signal(int(pid), syscall.SIGTERM); err != nil {
		log.Printf("[agent] failed to stop unrecorded agent %s: %v", pid, err)
	}
}

// Cancel stops the task's running agent. It signals the process once,
// marks the run cancelled and releases the slot without waiting for the
// process to exit. It returns nil when nothing is running.
func (m *Manager) Cancel(taskID string) (*models.AgentRun, error) {
	run, err := m.db.RunningRunForTask(taskID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}

	if run.PID.Monitorable() {
		if err := m.cfg.Signaler.Signal(int(run.PID), syscall.SIGTERM); err != nil {
			log.Printf("[agent] signal for run %s failed: %v", run.ID, err)
		}
	}
	m.registry.Remove(run.ID)

	err = m.db.Transaction(func(tx *state.Tx) error {
		finished, err := tx.FinishRun(run.ID, models.RunStatusCancelled, "", nil)
		if err != nil || !finished {
			return err
		}
		if err := tx.LogEvent(taskID, models.EventAgentCancelled, "PID "+run.PID.String(), ""); err != nil {
			return err
		}
		if run.SlotID == 0 {
			return nil
		}
		if err := m.pool.ReleaseTx(tx, run.SlotID); err != nil && !errors.Is(err, state.ErrSlotNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel agent for %s: %w", taskID, err)
	}
	log.Printf("[agent] cancelled run %s for task %s", run.ID, taskID)
	return m.db.GetRun(run.ID)
}

// GetRun returns the run or nil.
func (m *Manager) GetRun(id string) (*models.AgentRun, error) {
	return m.db.GetRun(id)
}

// LatestRun returns the task's most recent run or nil.
func (m *Manager) LatestRun(taskID string) (*models.AgentRun, error) {
	return m.db.LatestRunForTask(taskID)
}

// ListRuns returns runs newest first.
func (m *Manager) ListRuns(f state.RunFilter) ([]models.AgentRun, error) {
	return m.db.ListRuns(f)
}

// ReadOutput returns the output of the task's latest run. ok is false when
// there is no run or its output file does not exist.
func (m *Manager) ReadOutput(taskID string) (output string, ok bool, err error) {
	run, err := m.db.LatestRunForTask(taskID)
	if err != nil || run == nil || run.OutputFile == "" {
		return "", false, err
	}
	data, err := os.ReadFile(run.OutputFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read agent output: %w", err)
	}
	return string(data), true, nil
}
