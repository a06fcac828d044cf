// Package slots manages the pool of registered git worktrees that agents
// run in. The pool is the only writer of slot occupancy.
package slots

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ashewang/work-orchestrator/internal/git"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// Pool registers, hands out and releases worktree slots.
type Pool struct {
	db  *state.DB
	git git.WorktreeOperations
}

// NewPool creates a slot pool over db. The git provider is used only for
// discovery.
func NewPool(db *state.DB, g git.WorktreeOperations) *Pool {
	return &Pool{db: db, git: g}
}

// ResolvePath returns the absolute, symlink-free form of path. Paths that
// do not exist are only made absolute.
func ResolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// Register adds a single working copy as an available slot. An empty label
// defaults to the directory name.
func (p *Pool) Register(projectID, path, label, branch string) (*models.Slot, error) {
	slot := &models.Slot{ProjectID: projectID, Path: ResolvePath(path), Label: label, Branch: branch}
	if slot.Label == "" {
		slot.Label = filepath.Base(slot.Path)
	}
	if err := p.db.Transaction(func(tx *state.Tx) error { return tx.InsertSlot(slot) }); err != nil {
		return nil, err
	}
	log.Printf("[slots] registered %s (%s) for project %s", slot.Label, slot.Path, projectID)
	return slot, nil
}

// Discover registers every non-bare working copy of repo that is not yet a
// slot. Running it again over an unchanged repository registers nothing.
// An empty repo uses the project's repository path.
func (p *Pool) Discover(ctx context.Context, projectID, repo string) ([]models.Slot, error) {
	project, err := p.db.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrProjectNotFound, projectID)
	}
	if repo == "" {
		repo = project.RepoPath
	}

	worktrees, err := p.git.ListWorktrees(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("discover worktrees: %w", err)
	}

	var registered []models.Slot
	err = p.db.Transaction(func(tx *state.Tx) error {
		known, err := knownPaths(tx)
		if err != nil {
			return err
		}
		for _, wt := range worktrees {
			if wt.Bare {
				continue
			}
			resolved := ResolvePath(wt.Path)
			if known[resolved] {
				continue
			}
			label := filepath.Base(wt.Path)
			if label == "" || label == "." || label == string(os.PathSeparator) {
				label = projectID
			}
			slot := &models.Slot{ProjectID: projectID, Path: resolved, Label: label, Branch: wt.Branch}
			if err := tx.InsertSlot(slot); err != nil {
				return err
			}
			known[resolved] = true
			registered = append(registered, *slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[slots] discovered %d new worktrees for project %s", len(registered), projectID)
	return registered, nil
}

// knownPaths returns the resolved paths of every registered slot. Paths are
// unique across projects.
func knownPaths(tx *state.Tx) (map[string]bool, error) {
	paths, err := tx.SlotPaths()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(paths))
	for _, p := range paths {
		known[ResolvePath(p)] = true
	}
	return known, nil
}

// List returns a project's slots ordered by label, optionally filtered by
// status.
func (p *Pool) List(projectID string, status models.SlotStatus) ([]models.Slot, error) {
	return p.db.ListSlots(projectID, status)
}

// Get returns the slot or nil if it does not exist.
func (p *Pool) Get(id int64) (*models.Slot, error) {
	return p.db.GetSlot(id)
}

// GetByLabel returns the project's slot with the given label, or nil.
func (p *Pool) GetByLabel(projectID, label string) (*models.Slot, error) {
	return p.db.GetSlotByLabel(projectID, label)
}

// FirstAvailable returns the first free slot of a project by label order.
func (p *Pool) FirstAvailable(projectID string) (*models.Slot, error) {
	available, err := p.db.ListSlots(projectID, models.SlotAvailable)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w for project '%s'", state.ErrNoAvailableSlot, projectID)
	}
	return &available[0], nil
}

// Assign gives taskID the slot. The slot becomes occupied, the task takes
// the slot's path and branch, and an event is logged, all in one
// transaction. On error nothing changes.
func (p *Pool) Assign(taskID string, slotID int64) (*models.Slot, error) {
	var slot *models.Slot
	err := p.db.Transaction(func(tx *state.Tx) (err error) {
		slot, err = p.AssignTx(tx, taskID, slotID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[slots] assigned task %s to %s", taskID, slot.Label)
	return slot, nil
}

// AssignTx is Assign within the caller's transaction.
func (p *Pool) AssignTx(tx *state.Tx, taskID string, slotID int64) (*models.Slot, error) {
	slot, err := tx.GetSlot(slotID)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, fmt.Errorf("%w: %d", state.ErrSlotNotFound, slotID)
	}
	if slot.Occupied() {
		return nil, &state.SlotOccupiedError{Label: slot.Label, TaskID: slot.CurrentTaskID}
	}
	task, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}
	held, err := tx.SlotForTask(taskID)
	if err != nil {
		return nil, err
	}
	if held != nil {
		return nil, fmt.Errorf("%w: task %s holds slot '%s'", state.ErrTaskAlreadyAssigned, taskID, held.Label)
	}

	if err := tx.OccupySlot(slot.ID, taskID); err != nil {
		return nil, err
	}
	if err := tx.SetTaskWorktree(taskID, slot.Path, slot.Branch); err != nil {
		return nil, err
	}
	if err := tx.LogEvent(taskID, models.EventAssignedToSlot, "", slot.Label); err != nil {
		return nil, err
	}
	return tx.GetSlot(slot.ID)
}

// Release frees a slot. Releasing an available slot is a no-op.
func (p *Pool) Release(slotID int64) (*models.Slot, error) {
	var slot *models.Slot
	err := p.db.Transaction(func(tx *state.Tx) error {
		if err := p.ReleaseTx(tx, slotID); err != nil {
			return err
		}
		var err error
		slot, err = tx.GetSlot(slotID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// ReleaseTx is Release within the caller's transaction.
func (p *Pool) ReleaseTx(tx *state.Tx, slotID int64) error {
	return tx.ReleaseSlot(slotID)
}
