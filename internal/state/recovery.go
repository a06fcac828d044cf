package state

import (
	"fmt"
	"os"
	"syscall"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// ProcessChecker reports whether a process is still alive.
type ProcessChecker func(pid models.PID) bool

// IsProcessAlive sends signal 0 to pid. Unmonitorable pids are never
// probed and report false.
func IsProcessAlive(pid models.PID) bool {
	if !pid.Monitorable() {
		return false
	}
	process, err := os.FindProcess(int(pid))
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists but belongs to someone else.
	return err == syscall.EPERM
}

// RecoveryReport lists persisted state that disagrees with the machine,
// typically after the orchestrator was restarted.
type RecoveryReport struct {
	// DeadRuns are running runs whose process no longer exists. The
	// monitor will reconcile them on its next pass.
	DeadRuns []models.AgentRun
	// UnmonitorableRuns are running runs without a known process id.
	// They stay running until cancelled.
	UnmonitorableRuns []models.AgentRun
	// IdleOccupiedSlots are occupied slots whose task has no running run,
	// such as after a launch failed following assignment.
	IdleOccupiedSlots []models.Slot
	// MissingSlots are registered slots whose path is gone from disk.
	MissingSlots []models.Slot
}

// Empty reports whether nothing needs attention.
func (r *RecoveryReport) Empty() bool {
	return len(r.DeadRuns) == 0 && len(r.UnmonitorableRuns) == 0 &&
		len(r.IdleOccupiedSlots) == 0 && len(r.MissingSlots) == 0
}

// RecoveryManager inspects stored runs and slots for a project.
type RecoveryManager struct {
	db    *DB
	alive ProcessChecker
}

// NewRecoveryManager creates a RecoveryManager. A nil checker uses
// IsProcessAlive.
func NewRecoveryManager(db *DB, alive ProcessChecker) *RecoveryManager {
	if alive == nil {
		alive = IsProcessAlive
	}
	return &RecoveryManager{db: db, alive: alive}
}

// Inspect builds a report for projectID. It changes nothing.
func (rm *RecoveryManager) Inspect(projectID string) (*RecoveryReport, error) {
	report := &RecoveryReport{}
	err := rm.db.View(func(tx *Tx) error {
		runs, err := tx.ListRuns(RunFilter{Status: models.RunStatusRunning, ProjectID: projectID})
		if err != nil {
			return fmt.Errorf("list running runs: %w", err)
		}
		for _, r := range runs {
			switch {
			case !r.PID.Monitorable():
				report.UnmonitorableRuns = append(report.UnmonitorableRuns, r)
			case !rm.alive(r.PID):
				report.DeadRuns = append(report.DeadRuns, r)
			}
		}

		slots, err := tx.ListSlots(projectID, "")
		if err != nil {
			return fmt.Errorf("list slots: %w", err)
		}
		for _, s := range slots {
			if _, err := os.Stat(s.Path); os.IsNotExist(err) {
				report.MissingSlots = append(report.MissingSlots, s)
			}
			if !s.Occupied() {
				continue
			}
			run, err := tx.RunningRunForTask(s.CurrentTaskID)
			if err != nil {
				return err
			}
			if run == nil {
				report.IdleOccupiedSlots = append(report.IdleOccupiedSlots, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
