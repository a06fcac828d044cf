package state

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

const maxSlugLen = 60

var (
	slugStrip   = regexp.MustCompile(`[^\p{L}\p{N}\p{Z}\s_-]`)
	slugSpace   = regexp.MustCompile(`[\p{Z}\s_]+`)
	slugHyphens = regexp.MustCompile(`-+`)
	taskColumns = `id, project_id, title, description, status, priority, parent_task_id, branch_name, worktree_path, pr_url, created_at, updated_at, completed_at`
)

// Slugify converts a task title into an identifier: lowercase, letters and
// digits of any script kept, punctuation dropped, runs of whitespace and
// underscores collapsed into single hyphens, truncated to 60 characters.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugSpace.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if r := []rune(slug); len(r) > maxSlugLen {
		slug = string(r[:maxSlugLen])
	}
	if slug == "" {
		slug = "task"
	}
	return slug
}

// uniqueTaskID appends -2, -3, ... to base until it names no existing task.
func (tx *Tx) uniqueTaskID(base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		exists, err := tx.taskExists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
}

func (tx *Tx) taskExists(id string) (bool, error) {
	var one int
	err := tx.q.QueryRow(`SELECT 1 FROM tasks WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check task %s: %w", id, err)
	}
	return true, nil
}

// CreateTaskOptions carries the optional fields of a new task.
type CreateTaskOptions struct {
	ProjectID   string
	Description string
	ParentID    string
	DependsOn   []string
	PRURL       string
	Priority    *int
}

// CreateTask inserts a task with an id derived from its title. The priority
// is clamped into range; every named dependency must exist.
func (tx *Tx) CreateTask(title string, opts CreateTaskOptions) (*models.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("create task: title is required")
	}
	projectID := opts.ProjectID
	if projectID == "" {
		projectID = DefaultProjectID
	}
	priority := models.DefaultPriority
	if opts.Priority != nil {
		priority = models.ClampPriority(*opts.Priority)
	}

	if opts.ParentID != "" {
		ok, err := tx.taskExists(opts.ParentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("parent %s: %w", opts.ParentID, ErrTaskNotFound)
		}
	}

	id, err := tx.uniqueTaskID(Slugify(title))
	if err != nil {
		return nil, err
	}

	ts := formatTime(now())
	_, err = tx.q.Exec(`
		INSERT INTO tasks (id, project_id, title, description, status, priority, parent_task_id, pr_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, projectID, title, opts.Description, models.TaskStatusTodo, priority,
		nullString(opts.ParentID), nullString(opts.PRURL), ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	for _, dep := range opts.DependsOn {
		ok, err := tx.taskExists(dep)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDependencyNotFound, dep)
		}
		if _, err := tx.q.Exec(`
			INSERT OR IGNORE INTO task_dependencies (task_id, depends_on_task_id) VALUES (?, ?)
		`, id, dep); err != nil {
			return nil, fmt.Errorf("add dependency %s: %w", dep, err)
		}
	}

	if err := tx.LogEvent(id, models.EventCreated, "", string(models.TaskStatusTodo)); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// GetTask returns the task with its dependencies and direct subtasks, or
// nil if it does not exist.
func (tx *Tx) GetTask(id string) (*models.Task, error) {
	row := tx.q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	if t.DependsOn, err = tx.dependencies(id); err != nil {
		return nil, err
	}

	rows, err := tx.q.Query(`
		SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = ?
		ORDER BY priority ASC, created_at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sub, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		t.Subtasks = append(t.Subtasks, *sub)
	}
	return t, rows.Err()
}

// mustGetTask is GetTask that turns a missing task into ErrTaskNotFound.
func (tx *Tx) mustGetTask(id string) (*models.Task, error) {
	t, err := tx.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

func (tx *Tx) dependencies(id string) ([]string, error) {
	rows, err := tx.q.Query(`
		SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ? ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	deps := []string{}
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		deps = append(deps, dep)
	}
	return deps, rows.Err()
}

// TaskFilter narrows ListTasks. With ParentID empty only top-level tasks
// are returned.
type TaskFilter struct {
	ProjectID string
	Status    models.TaskStatus
	ParentID  string
}

// ListTasks returns tasks ordered by priority then creation time.
func (tx *Tx) ListTasks(f TaskFilter) ([]models.Task, error) {
	projectID := f.ProjectID
	if projectID == "" {
		projectID = DefaultProjectID
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = ?`
	args := []any{projectID}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ParentID != "" {
		query += ` AND parent_task_id = ?`
		args = append(args, f.ParentID)
	} else {
		query += ` AND parent_task_id IS NULL`
	}
	query += ` ORDER BY priority ASC, created_at ASC, rowid ASC`

	rows, err := tx.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	for i := range tasks {
		if tasks[i].DependsOn, err = tx.dependencies(tasks[i].ID); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// UpdateTaskStatus moves a task to a new status after checking the
// transition table. Becoming done stamps the completion time.
func (tx *Tx) UpdateTaskStatus(id string, status models.TaskStatus) (*models.Task, error) {
	t, err := tx.mustGetTask(id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(status) {
		return nil, &TransitionError{TaskID: id, From: t.Status, To: status}
	}

	ts := formatTime(now())
	if status == models.TaskStatusDone && t.Status != models.TaskStatusDone {
		_, err = tx.q.Exec(`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			status, ts, ts, id)
	} else {
		_, err = tx.q.Exec(`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`, status, ts, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update task status: %w", err)
	}
	if err := tx.LogEvent(id, models.EventStatusChanged, string(t.Status), string(status)); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// UpdateTaskPriority sets a clamped priority.
func (tx *Tx) UpdateTaskPriority(id string, priority int) (*models.Task, error) {
	t, err := tx.mustGetTask(id)
	if err != nil {
		return nil, err
	}
	priority = models.ClampPriority(priority)
	if _, err := tx.q.Exec(`UPDATE tasks SET priority = ?, updated_at = ? WHERE id = ?`,
		priority, formatTime(now()), id); err != nil {
		return nil, fmt.Errorf("update task priority: %w", err)
	}
	if err := tx.LogEvent(id, models.EventPriorityChanged, strconv.Itoa(t.Priority), strconv.Itoa(priority)); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// UpdateTaskPRURL sets or clears the review link of a task.
func (tx *Tx) UpdateTaskPRURL(id, url string) (*models.Task, error) {
	t, err := tx.mustGetTask(id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.q.Exec(`UPDATE tasks SET pr_url = ?, updated_at = ? WHERE id = ?`,
		nullString(url), formatTime(now()), id); err != nil {
		return nil, fmt.Errorf("update task pr url: %w", err)
	}
	if err := tx.LogEvent(id, models.EventPRURLChanged, t.PRURL, url); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// SetTaskWorktree records the working path and branch a task was given.
// Only slot assignment and per-task worktree creation call it.
func (tx *Tx) SetTaskWorktree(id, path, branch string) error {
	res, err := tx.q.Exec(`UPDATE tasks SET worktree_path = ?, branch_name = ?, updated_at = ? WHERE id = ?`,
		nullString(path), nullString(branch), formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("set task worktree: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// TasksWithWorktree returns tasks, subtasks included, that have a worktree
// path. Empty projectID or status match everything.
func (tx *Tx) TasksWithWorktree(projectID string, status models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE worktree_path IS NOT NULL`
	var args []any
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY priority ASC, created_at ASC, rowid ASC`

	rows, err := tx.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task worktrees: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// AddDependency makes id depend on dependsOn. Re-adding an existing edge
// is a no-op.
func (tx *Tx) AddDependency(id, dependsOn string) (*models.Task, error) {
	t, err := tx.mustGetTask(id)
	if err != nil {
		return nil, err
	}
	ok, err := tx.taskExists(dependsOn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDependencyNotFound, dependsOn)
	}
	if t.HasDependency(dependsOn) {
		return t, nil
	}
	if _, err := tx.q.Exec(`INSERT INTO task_dependencies (task_id, depends_on_task_id) VALUES (?, ?)`,
		id, dependsOn); err != nil {
		return nil, fmt.Errorf("add dependency: %w", err)
	}
	if err := tx.LogEvent(id, models.EventDependencyAdded, "", dependsOn); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// RemoveDependency drops the edge from id to dependsOn.
func (tx *Tx) RemoveDependency(id, dependsOn string) (*models.Task, error) {
	if _, err := tx.mustGetTask(id); err != nil {
		return nil, err
	}
	if _, err := tx.q.Exec(`DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?`,
		id, dependsOn); err != nil {
		return nil, fmt.Errorf("remove dependency: %w", err)
	}
	if err := tx.LogEvent(id, models.EventDependencyRemoved, dependsOn, ""); err != nil {
		return nil, err
	}
	return tx.GetTask(id)
}

// BreakDownTask creates subtasks under parentID in the parent's project.
func (tx *Tx) BreakDownTask(parentID string, specs []models.SubtaskSpec) ([]models.Task, error) {
	parent, err := tx.mustGetTask(parentID)
	if err != nil {
		return nil, err
	}
	created := make([]models.Task, 0, len(specs))
	for _, spec := range specs {
		t, err := tx.CreateTask(spec.Title, CreateTaskOptions{
			ProjectID:   parent.ProjectID,
			Description: spec.Description,
			ParentID:    parentID,
			DependsOn:   spec.DependsOn,
			Priority:    spec.Priority,
		})
		if err != nil {
			return nil, fmt.Errorf("create subtask %q: %w", spec.Title, err)
		}
		created = append(created, *t)
	}
	return created, nil
}

// DeleteTask removes a task, its subtasks, their edges, events and runs.
// A slot held by a deleted task is freed. Reports false if id is unknown.
func (tx *Tx) DeleteTask(id string) (bool, error) {
	t, err := tx.GetTask(id)
	if err != nil || t == nil {
		return false, err
	}
	for _, sub := range t.Subtasks {
		if _, err := tx.DeleteTask(sub.ID); err != nil {
			return false, err
		}
	}

	if _, err := tx.q.Exec(`DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_task_id = ?`,
		id, id); err != nil {
		return false, fmt.Errorf("delete dependencies of %s: %w", id, err)
	}
	for _, table := range []string{"task_events", "agent_runs"} {
		if _, err := tx.q.Exec(`DELETE FROM `+table+` WHERE task_id = ?`, id); err != nil {
			return false, fmt.Errorf("delete %s of %s: %w", table, id, err)
		}
	}
	if _, err := tx.q.Exec(`
		UPDATE worktree_slots SET status = ?, current_task_id = NULL, updated_at = ?
		WHERE current_task_id = ?
	`, models.SlotAvailable, formatTime(now()), id); err != nil {
		return false, fmt.Errorf("free slot of task %s: %w", id, err)
	}
	if _, err := tx.q.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete task %s: %w", id, err)
	}
	return true, nil
}

// ReadyTasks returns top-level todo tasks whose dependencies are all done.
func (tx *Tx) ReadyTasks(projectID string) ([]models.Task, error) {
	return tx.partitionTodo(projectID, true)
}

// BlockedTasks returns top-level todo tasks waiting on an unfinished
// dependency.
func (tx *Tx) BlockedTasks(projectID string) ([]models.Task, error) {
	return tx.partitionTodo(projectID, false)
}

func (tx *Tx) partitionTodo(projectID string, wantReady bool) ([]models.Task, error) {
	todo, err := tx.ListTasks(TaskFilter{ProjectID: projectID, Status: models.TaskStatusTodo})
	if err != nil {
		return nil, err
	}
	var out []models.Task
	for _, t := range todo {
		ready, err := tx.dependenciesDone(t.DependsOn)
		if err != nil {
			return nil, err
		}
		if ready == wantReady {
			out = append(out, t)
		}
	}
	return out, nil
}

// dependenciesDone reports whether every listed task exists and is done.
func (tx *Tx) dependenciesDone(deps []string) (bool, error) {
	for _, dep := range deps {
		var status models.TaskStatus
		err := tx.q.QueryRow(`SELECT status FROM tasks WHERE id = ?`, dep).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("check dependency %s: %w", dep, err)
		}
		if status != models.TaskStatusDone {
			return false, nil
		}
	}
	return true, nil
}

// LogEvent appends an entry to the task audit log.
func (tx *Tx) LogEvent(taskID, eventType, oldValue, newValue string) error {
	_, err := tx.q.Exec(`
		INSERT INTO task_events (task_id, event_type, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, taskID, eventType, nullString(oldValue), nullString(newValue), formatTime(now()))
	if err != nil {
		return fmt.Errorf("log %s event: %w", eventType, err)
	}
	return nil
}

// TaskEvents returns the audit log of a task, oldest first.
func (tx *Tx) TaskEvents(taskID string) ([]models.TaskEvent, error) {
	rows, err := tx.q.Query(`
		SELECT id, task_id, event_type, old_value, new_value, created_at
		FROM task_events WHERE task_id = ? ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list task events: %w", err)
	}
	defer rows.Close()

	var events []models.TaskEvent
	for rows.Next() {
		var e models.TaskEvent
		var oldV, newV sql.NullString
		var created string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.EventType, &oldV, &newV, &created); err != nil {
			return nil, fmt.Errorf("scan task event: %w", err)
		}
		e.OldValue, e.NewValue = oldV.String, newV.String
		e.CreatedAt, _ = parseTime(created)
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var parent, branch, worktree, pr, completed sql.NullString
	var created, updated string
	err := s.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&parent, &branch, &worktree, &pr, &created, &updated, &completed)
	if err != nil {
		return nil, err
	}
	t.ParentID = parent.String
	t.BranchName = branch.String
	t.WorktreePath = worktree.String
	t.PRURL = pr.String
	t.CreatedAt, _ = parseTime(created)
	t.UpdatedAt, _ = parseTime(updated)
	t.CompletedAt = parseNullableTime(completed)
	t.DependsOn = []string{}
	return &t, nil
}
