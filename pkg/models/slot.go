package models

import "time"

// SlotStatus represents the occupancy of a worktree slot.
type SlotStatus string

const (
	// SlotAvailable indicates no task occupies the slot.
	SlotAvailable SlotStatus = "available"
	// SlotOccupied indicates a task is assigned to the slot.
	SlotOccupied SlotStatus = "occupied"
)

// Valid returns true if the status is a known value.
func (s SlotStatus) Valid() bool {
	return s == SlotAvailable || s == SlotOccupied
}

// Slot is a registered git worktree that can host one task at a time.
type Slot struct {
	ID            int64      `json:"id"`
	ProjectID     string     `json:"project_id"`
	Path          string     `json:"path"`
	Label         string     `json:"label"`
	Branch        string     `json:"branch,omitempty"`
	Status        SlotStatus `json:"status"`
	CurrentTaskID string     `json:"current_task_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Occupied reports whether a task currently holds the slot.
func (s *Slot) Occupied() bool {
	return s.Status == SlotOccupied
}

// Project groups tasks and slots around one repository.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	RepoPath      string    `json:"repo_path"`
	DefaultBranch string    `json:"default_branch"`
	SlackChannel  string    `json:"slack_channel,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Memory is a stored note that agents and users can recall later.
type Memory struct {
	ID        int64     `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	ProjectID string    `json:"project_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectSummary counts tasks by status for a project.
type ProjectSummary struct {
	ProjectID   string             `json:"project_id"`
	Counts      map[TaskStatus]int `json:"counts"`
	Total       int                `json:"total"`
	ProgressPct float64            `json:"progress_pct"`
}
