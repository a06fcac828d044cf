package models

import (
	"strconv"
	"time"
)

// RunStatus represents the current state of an agent run.
type RunStatus string

const (
	// RunStatusRunning indicates the agent process is believed to be alive.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the agent exited successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the agent exited with a failure.
	RunStatusFailed RunStatus = "failed"
	// RunStatusCancelled indicates the run was cancelled by the orchestrator.
	RunStatusCancelled RunStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// CanTransitionTo reports whether a run may move from s to next.
// Runs only ever leave the running state, and only once.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	return s == RunStatusRunning && next.Terminal()
}

// PID is an operating-system process id as recorded for an agent run.
type PID int

// Unmonitorable marks a run whose real process id could not be learned.
// Liveness checks must never probe it.
const Unmonitorable PID = -1

// Monitorable reports whether the pid can be signalled or probed.
func (p PID) Monitorable() bool {
	return p > 0
}

// String renders the pid for logs and events.
func (p PID) String() string {
	if p == Unmonitorable {
		return "unknown"
	}
	return strconv.Itoa(int(p))
}

// AgentRun is one launch of an external coding agent against a slot.
type AgentRun struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`
	// TaskID is the task the agent is working on.
	TaskID string `json:"task_id"`
	// SlotID is the worktree slot the agent occupies.
	SlotID int64 `json:"worktree_slot_id"`
	// PID is the process id of the agent, or Unmonitorable.
	PID PID `json:"pid"`
	// Status is the current state of the run.
	Status RunStatus `json:"status"`
	// Instructions are the caller-supplied instructions for the agent.
	Instructions string `json:"instructions"`
	// Model is the model name passed to the agent.
	Model string `json:"model"`
	// MaxBudget is the optional spend cap forwarded to the agent, in USD.
	MaxBudget *float64 `json:"max_budget,omitempty"`
	// OutputFile is where the agent's combined output is captured.
	OutputFile string `json:"output_file"`
	// ResultSummary is filled in on reconciliation.
	ResultSummary string `json:"result_summary,omitempty"`
	// ExitCode is the process exit code when known.
	ExitCode *int `json:"exit_code,omitempty"`
	// StartedAt is when the run was launched.
	StartedAt time.Time `json:"started_at"`
	// CompletedAt is when the run became terminal.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
