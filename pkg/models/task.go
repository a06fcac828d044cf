package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusTodo indicates the task has not started.
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusReview indicates an agent finished and the work awaits review.
	TaskStatusReview TaskStatus = "review"
	// TaskStatusDone indicates the task is complete.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
)

// TaskStatuses lists every task status in display order.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusReview,
	TaskStatusDone,
	TaskStatusBlocked,
}

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// ParseTaskStatus converts user input into a TaskStatus.
func ParseTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid task status %q", s)
	}
	return status, nil
}

// taskTransitions is the allowed-transition table for task status changes.
// Setting a task to its current status is always allowed.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress, TaskStatusBlocked, TaskStatusDone},
	TaskStatusInProgress: {TaskStatusReview, TaskStatusTodo, TaskStatusBlocked, TaskStatusDone},
	TaskStatusReview:     {TaskStatusDone, TaskStatusInProgress, TaskStatusTodo},
	TaskStatusBlocked:    {TaskStatusTodo, TaskStatusInProgress, TaskStatusReview},
	TaskStatusDone:       {TaskStatusTodo, TaskStatusInProgress},
}

// CanTransitionTo reports whether a task may move from s to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Priority bounds. P0 is the highest priority.
const (
	MinPriority     = 0
	MaxPriority     = 6
	DefaultPriority = 3
)

// ClampPriority forces p into [MinPriority, MaxPriority].
func ClampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// Task represents a unit of work in the task graph.
type Task struct {
	// ID is the slug-derived unique identifier for this task.
	ID string `json:"id"`
	// ProjectID is the project this task belongs to.
	ProjectID string `json:"project_id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority ranges from 0 (highest) to 6 (lowest).
	Priority int `json:"priority"`
	// ParentID is the ID of the parent task, if this is a subtask.
	ParentID string `json:"parent_task_id,omitempty"`
	// BranchName is the working branch assigned to the task.
	BranchName string `json:"branch_name,omitempty"`
	// WorktreePath is the path of the worktree or slot the task works in.
	WorktreePath string `json:"worktree_path,omitempty"`
	// PRURL links to the external review for this task.
	PRURL string `json:"pr_url,omitempty"`
	// DependsOn lists task IDs that must be done before this task is ready.
	DependsOn []string `json:"depends_on"`
	// Subtasks is populated by single-task lookups only.
	Subtasks []Task `json:"subtasks,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the task was marked done, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasDependency reports whether the task already depends on id.
func (t *Task) HasDependency(id string) bool {
	for _, dep := range t.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// TaskEvent is one entry of a task's append-only audit log.
type TaskEvent struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	EventType string    `json:"event_type"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Event types recorded in the task audit log.
const (
	EventCreated           = "created"
	EventStatusChanged     = "status_changed"
	EventPriorityChanged   = "priority_changed"
	EventPRURLChanged      = "pr_url_changed"
	EventDependencyAdded   = "dependency_added"
	EventDependencyRemoved = "dependency_removed"
	EventAssignedToSlot    = "assigned_to_slot"
	EventWorktreeCreated   = "worktree_created"
	EventWorktreeRemoved   = "worktree_removed"
	EventAgentLaunched     = "agent_launched"
	EventAgentCancelled    = "agent_cancelled"
	EventAgentCompleted    = "agent_completed"
	EventAgentFailed       = "agent_failed"
)

// SubtaskSpec describes one subtask for a break-down operation.
type SubtaskSpec struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Priority    *int     `json:"priority,omitempty" yaml:"priority,omitempty"`
}
