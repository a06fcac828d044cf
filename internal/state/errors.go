package state

import (
	"errors"
	"fmt"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

var (
	// ErrTaskNotFound is returned when a task id does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrDependencyNotFound is returned when a dependency target does not exist.
	ErrDependencyNotFound = errors.New("dependency task not found")
	// ErrSlotNotFound is returned when a slot id or label does not exist.
	ErrSlotNotFound = errors.New("worktree slot not found")
	// ErrProjectNotFound is returned when a project id does not exist.
	ErrProjectNotFound = errors.New("project not found")
	// ErrNoAvailableSlot is returned when delegation finds no free slot.
	ErrNoAvailableSlot = errors.New("no available worktree slots")
	// ErrRunNotFound is returned when an agent run id does not exist.
	ErrRunNotFound = errors.New("agent run not found")
	// ErrTaskAlreadyAssigned is returned when a task already occupies a
	// different slot.
	ErrTaskAlreadyAssigned = errors.New("task already occupies a slot")
)

// SlotOccupiedError is returned when assigning a task to a slot that
// another task already holds.
type SlotOccupiedError struct {
	Label  string
	TaskID string
}

func (e *SlotOccupiedError) Error() string {
	return fmt.Sprintf("slot '%s' is already occupied by task %s", e.Label, e.TaskID)
}

// AgentRunningError is returned when launching for a task that already has
// a running agent.
type AgentRunningError struct {
	TaskID string
	PID    models.PID
}

func (e *AgentRunningError) Error() string {
	return fmt.Sprintf("task '%s' already has a running agent (PID %s)", e.TaskID, e.PID)
}

// NotAssignedError is returned when launching for a task that does not
// occupy a slot.
type NotAssignedError struct {
	TaskID string
}

func (e *NotAssignedError) Error() string {
	return fmt.Sprintf("task '%s' is not assigned to a worktree slot, assign it first", e.TaskID)
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task '%s' cannot move from %s to %s", e.TaskID, e.From, e.To)
}
