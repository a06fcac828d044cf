package state

import "github.com/ashewang/work-orchestrator/pkg/models"

// read runs fn under View and returns its value.
func read[T any](db *DB, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := db.View(func(tx *Tx) (err error) {
		out, err = fn(tx)
		return err
	})
	return out, err
}

// write runs fn under Transaction and returns its value.
func write[T any](db *DB, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := db.Transaction(func(tx *Tx) (err error) {
		out, err = fn(tx)
		return err
	})
	return out, err
}

// CreateTask inserts a task with an id derived from its title.
func (db *DB) CreateTask(title string, opts CreateTaskOptions) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.CreateTask(title, opts) })
}

// GetTask returns the task or nil if it does not exist.
func (db *DB) GetTask(id string) (*models.Task, error) {
	return read(db, func(tx *Tx) (*models.Task, error) { return tx.GetTask(id) })
}

// ListTasks returns tasks matching f.
func (db *DB) ListTasks(f TaskFilter) ([]models.Task, error) {
	return read(db, func(tx *Tx) ([]models.Task, error) { return tx.ListTasks(f) })
}

// UpdateTaskStatus moves a task to a new status.
func (db *DB) UpdateTaskStatus(id string, status models.TaskStatus) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.UpdateTaskStatus(id, status) })
}

// UpdateTaskPriority sets a clamped priority.
func (db *DB) UpdateTaskPriority(id string, priority int) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.UpdateTaskPriority(id, priority) })
}

// UpdateTaskPRURL sets or clears the review link of a task.
func (db *DB) UpdateTaskPRURL(id, url string) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.UpdateTaskPRURL(id, url) })
}

// AddDependency makes id depend on dependsOn.
func (db *DB) AddDependency(id, dependsOn string) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.AddDependency(id, dependsOn) })
}

// RemoveDependency drops the edge from id to dependsOn.
func (db *DB) RemoveDependency(id, dependsOn string) (*models.Task, error) {
	return write(db, func(tx *Tx) (*models.Task, error) { return tx.RemoveDependency(id, dependsOn) })
}

// BreakDownTask creates subtasks under parentID. Either all are created or none.
func (db *DB) BreakDownTask(parentID string, specs []models.SubtaskSpec) ([]models.Task, error) {
	return write(db, func(tx *Tx) ([]models.Task, error) { return tx.BreakDownTask(parentID, specs) })
}

// DeleteTask removes a task and its subtasks.
func (db *DB) DeleteTask(id string) (bool, error) {
	return write(db, func(tx *Tx) (bool, error) { return tx.DeleteTask(id) })
}

// ReadyTasks returns todo tasks whose dependencies are all done.
func (db *DB) ReadyTasks(projectID string) ([]models.Task, error) {
	return read(db, func(tx *Tx) ([]models.Task, error) { return tx.ReadyTasks(projectID) })
}

// BlockedTasks returns todo tasks waiting on an unfinished dependency.
func (db *DB) BlockedTasks(projectID string) ([]models.Task, error) {
	return read(db, func(tx *Tx) ([]models.Task, error) { return tx.BlockedTasks(projectID) })
}

// TaskEvents returns the audit log of a task.
func (db *DB) TaskEvents(taskID string) ([]models.TaskEvent, error) {
	return read(db, func(tx *Tx) ([]models.TaskEvent, error) { return tx.TaskEvents(taskID) })
}

// LogEvent appends an entry to the task audit log.
func (db *DB) LogEvent(taskID, eventType, oldValue, newValue string) error {
	return db.Transaction(func(tx *Tx) error { return tx.LogEvent(taskID, eventType, oldValue, newValue) })
}

// TasksWithWorktree returns tasks that have a worktree path.
func (db *DB) TasksWithWorktree(projectID string, status models.TaskStatus) ([]models.Task, error) {
	return read(db, func(tx *Tx) ([]models.Task, error) { return tx.TasksWithWorktree(projectID, status) })
}
