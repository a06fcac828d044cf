package state

import (
	"io"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// TaskStore handles task graph persistence operations.
type TaskStore interface {
	CreateTask(title string, opts CreateTaskOptions) (*models.Task, error)
	GetTask(id string) (*models.Task, error)
	ListTasks(f TaskFilter) ([]models.Task, error)
	UpdateTaskStatus(id string, status models.TaskStatus) (*models.Task, error)
	UpdateTaskPriority(id string, priority int) (*models.Task, error)
	UpdateTaskPRURL(id, url string) (*models.Task, error)
	AddDependency(id, dependsOn string) (*models.Task, error)
	RemoveDependency(id, dependsOn string) (*models.Task, error)
	BreakDownTask(parentID string, specs []models.SubtaskSpec) ([]models.Task, error)
	DeleteTask(id string) (bool, error)
	ReadyTasks(projectID string) ([]models.Task, error)
	BlockedTasks(projectID string) ([]models.Task, error)
	TaskEvents(taskID string) ([]models.TaskEvent, error)
}

// ProjectStore handles project persistence operations.
type ProjectStore interface {
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	ListProjects() ([]models.Project, error)
	UpdateProject(p *models.Project) error
	ProjectSummary(projectID string) (*models.ProjectSummary, error)
}

// MemoryStore handles stored notes.
type MemoryStore interface {
	Remember(key, value, category, projectID string) (*models.Memory, error)
	RecallByKey(key, projectID string) (*models.Memory, error)
	SearchMemories(query string, f MemoryFilter) ([]models.Memory, error)
	ListMemories(f MemoryFilter) ([]models.Memory, error)
	Forget(key, projectID string) (bool, error)
}

// RunReader exposes agent runs read-only. Runs are written only by the
// agent manager and the monitor, inside transactions.
type RunReader interface {
	GetRun(id string) (*models.AgentRun, error)
	LatestRunForTask(taskID string) (*models.AgentRun, error)
	RunningRunForTask(taskID string) (*models.AgentRun, error)
	ListRuns(f RunFilter) ([]models.AgentRun, error)
}

// SlotReader exposes slots read-only. Occupancy changes go through the
// slot pool.
type SlotReader interface {
	GetSlot(id int64) (*models.Slot, error)
	GetSlotByLabel(projectID, label string) (*models.Slot, error)
	ListSlots(projectID string, status models.SlotStatus) ([]models.Slot, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes every read and write surface the presentation layers use.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	ProjectStore
	MemoryStore
	RunReader
	SlotReader
	Transaction(fn func(tx *Tx) error) error
	View(fn func(tx *Tx) error) error
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
	_ ProjectStore = (*DB)(nil)
	_ MemoryStore  = (*DB)(nil)
	_ RunReader    = (*DB)(nil)
	_ SlotReader   = (*DB)(nil)
)
