// Package monitor reconciles persisted agent runs with the processes they
// represent. A single background loop polls running runs, classifies the
// ones that have finished and releases their slots.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ashewang/work-orchestrator/internal/agent"
	"github.com/ashewang/work-orchestrator/internal/notify"
	"github.com/ashewang/work-orchestrator/internal/slots"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// Defaults for Config.
const (
	DefaultInterval    = 5 * time.Second
	DefaultJoinTimeout = 10 * time.Second
)

// Config configures a Monitor. Zero fields take defaults.
type Config struct {
	// Interval is the pause between iterations.
	Interval time.Duration
	// JoinTimeout bounds how long Stop waits for the loop to exit.
	JoinTimeout time.Duration
	// Registry holds live handles of runs started by this process.
	Registry *agent.ProcessRegistry
	// Alive probes recorded pids. Defaults to state.IsProcessAlive.
	Alive state.ProcessChecker
	// Sink receives completion messages. Nil disables notifications.
	Sink notify.Sink
	// Metrics records reconciliation counters. Nil disables them.
	Metrics *Metrics
}

// Monitor is the reconciliation loop.
type Monitor struct {
	db   *state.DB
	pool *slots.Pool
	cfg  Config

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates a monitor. It does not start polling until Start.
func New(db *state.DB, pool *slots.Pool, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	if cfg.Registry == nil {
		cfg.Registry = agent.NewProcessRegistry()
	}
	if cfg.Alive == nil {
		cfg.Alive = state.IsProcessAlive
	}
	return &Monitor{db: db, pool: pool, cfg: cfg}
}

// Start launches the polling loop. Starting while a loop is still running,
// including one that outlived a timed-out Stop, is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopActive() {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
	log.Printf("[monitor] started (interval %s)", m.cfg.Interval)
}

// Stop signals the loop and waits for it up to the join timeout. After a
// timeout the loop still owns the monitor; calling Stop again keeps waiting.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop = nil
	m.mu.Unlock()
	if done == nil {
		return nil
	}

	if stop != nil {
		close(stop)
	}
	select {
	case <-done:
		m.mu.Lock()
		if m.done == done {
			m.done = nil
		}
		m.mu.Unlock()
		log.Printf("[monitor] stopped")
		return nil
	case <-time.After(m.cfg.JoinTimeout):
		return fmt.Errorf("monitor did not stop within %s", m.cfg.JoinTimeout)
	}
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopActive()
}

// loopActive reports whether a loop goroutine has not exited yet. m.mu must
// be held.
func (m *Monitor) loopActive() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

func (m *Monitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	for {
		if _, err := m.RunOnce(ctx); err != nil {
			m.cfg.Metrics.incErrors()
			log.Printf("[monitor] iteration failed: %v", err)
		}
		select {
		case <-stop:
			return
		case <-time.After(m.cfg.Interval):
		}
	}
}

// RunOnce performs one reconciliation pass and returns how many runs it
// finished. A failure on one run is logged and does not stop the others.
func (m *Monitor) RunOnce(ctx context.Context) (reconciled int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	runs, err := m.db.ListRuns(state.RunFilter{Status: models.RunStatusRunning})
	if err != nil {
		return 0, err
	}
	m.cfg.Metrics.setRunning(len(runs))

	for i := range runs {
		done, err := m.reconcile(ctx, &runs[i])
		if err != nil {
			m.cfg.Metrics.incErrors()
			log.Printf("[monitor] reconcile run %s (task %s) failed: %v", runs[i].ID, runs[i].TaskID, err)
			continue
		}
		if done {
			reconciled++
		}
	}
	return reconciled, nil
}

// reconcile finishes run if its process has exited. It reports whether the
// run was finished.
func (m *Monitor) reconcile(ctx context.Context, run *models.AgentRun) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var exitCode *int
	if proc, ok := m.cfg.Registry.Get(run.ID); ok {
		code, exited := proc.Poll()
		if !exited {
			return false, nil
		}
		exitCode = &code
	} else {
		if !run.PID.Monitorable() || m.cfg.Alive(run.PID) {
			return false, nil
		}
	}

	out := Classify(run.OutputFile, exitCode)
	finished, err := m.complete(run, out)
	if err != nil {
		return false, err
	}
	m.cfg.Registry.Remove(run.ID)
	if !finished {
		return false, nil
	}

	m.cfg.Metrics.incReconciled(string(out.Status))
	log.Printf("[monitor] agent PID %s for task '%s' %s (exit_code=%d)", run.PID, run.TaskID, out.Status, out.ExitCode)
	if err := m.notify(ctx, run, out); err != nil {
		log.Printf("[monitor] notification for run %s failed: %v", run.ID, err)
	}
	return true, nil
}

// complete records the outcome in one transaction: the run becomes
// terminal, a completed run moves its task to review, an event is logged
// and the slot is released. It reports false if the run was no longer
// running.
func (m *Monitor) complete(run *models.AgentRun, out Outcome) (bool, error) {
	var finished bool
	err := m.db.Transaction(func(tx *state.Tx) error {
		code := out.ExitCode
		var err error
		finished, err = tx.FinishRun(run.ID, out.Status, out.Summary, &code)
		if err != nil || !finished {
			return err
		}

		if out.Status == models.RunStatusCompleted {
			task, err := tx.GetTask(run.TaskID)
			if err != nil {
				return err
			}
			if task != nil && task.Status.CanTransitionTo(models.TaskStatusReview) {
				if _, err := tx.UpdateTaskStatus(run.TaskID, models.TaskStatusReview); err != nil {
					return err
				}
			} else if task != nil {
				log.Printf("[monitor] task %s is %s, not moving it to review", run.TaskID, task.Status)
			}
			if err := tx.LogEvent(run.TaskID, models.EventAgentCompleted, "", out.Summary); err != nil {
				return err
			}
		} else if err := tx.LogEvent(run.TaskID, models.EventAgentFailed, "", out.Summary); err != nil {
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
	return finished, err
}

// notify sends the completion message to the project's channel. Projects
// without a channel are skipped.
func (m *Monitor) notify(ctx context.Context, run *models.AgentRun, out Outcome) error {
	if m.cfg.Sink == nil {
		return nil
	}
	var task *models.Task
	var project *models.Project
	err := m.db.View(func(tx *state.Tx) error {
		var err error
		if task, err = tx.GetTask(run.TaskID); err != nil || task == nil {
			return err
		}
		project, err = tx.GetProject(task.ProjectID)
		return err
	})
	if err != nil {
		return err
	}
	if task == nil || project == nil || project.SlackChannel == "" {
		return nil
	}
	_, err = m.cfg.Sink.Send(ctx, project.SlackChannel, notify.AgentCompletionText(task, run, out.Status, out.Summary))
	return err
}
