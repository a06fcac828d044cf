package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

const slotColumns = `id, project_id, path, label, branch, status, current_task_id, created_at, updated_at`

// InsertSlot registers a slot as available and fills in its id.
func (tx *Tx) InsertSlot(s *models.Slot) error {
	ts := now()
	s.Status = models.SlotAvailable
	s.CurrentTaskID = ""
	s.CreatedAt, s.UpdatedAt = ts, ts
	res, err := tx.q.Exec(`
		INSERT INTO worktree_slots (project_id, path, label, branch, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.ProjectID, s.Path, s.Label, nullString(s.Branch), s.Status, formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("insert slot %s: %w", s.Path, err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert slot %s: %w", s.Path, err)
	}
	return nil
}

// GetSlot returns the slot or nil if it does not exist.
func (tx *Tx) GetSlot(id int64) (*models.Slot, error) {
	return tx.getSlot(`SELECT `+slotColumns+` FROM worktree_slots WHERE id = ?`, id)
}

// GetSlotByLabel returns the first slot of a project with the given label,
// or nil.
func (tx *Tx) GetSlotByLabel(projectID, label string) (*models.Slot, error) {
	return tx.getSlot(`
		SELECT `+slotColumns+` FROM worktree_slots WHERE project_id = ? AND label = ?
		ORDER BY id LIMIT 1
	`, projectID, label)
}

// SlotForTask returns the slot occupied by taskID, or nil.
func (tx *Tx) SlotForTask(taskID string) (*models.Slot, error) {
	return tx.getSlot(`SELECT `+slotColumns+` FROM worktree_slots WHERE current_task_id = ?`, taskID)
}

func (tx *Tx) getSlot(query string, args ...any) (*models.Slot, error) {
	s, err := scanSlot(tx.q.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

// ListSlots returns a project's slots ordered by label. An empty status
// returns all of them.
func (tx *Tx) ListSlots(projectID string, status models.SlotStatus) ([]models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM worktree_slots WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY label, id`

	rows, err := tx.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// SlotPaths returns the path of every registered slot across projects.
func (tx *Tx) SlotPaths() ([]string, error) {
	rows, err := tx.q.Query(`SELECT path FROM worktree_slots`)
	if err != nil {
		return nil, fmt.Errorf("list slot paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan slot path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// OccupySlot marks a slot occupied by taskID.
func (tx *Tx) OccupySlot(id int64, taskID string) error {
	res, err := tx.q.Exec(`
		UPDATE worktree_slots SET status = ?, current_task_id = ?, updated_at = ? WHERE id = ?
	`, models.SlotOccupied, taskID, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("occupy slot %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSlotNotFound, id)
	}
	return nil
}

// ReleaseSlot marks a slot available and clears its occupant. Releasing an
// available slot is a no-op.
func (tx *Tx) ReleaseSlot(id int64) error {
	res, err := tx.q.Exec(`
		UPDATE worktree_slots SET status = ?, current_task_id = NULL, updated_at = ? WHERE id = ?
	`, models.SlotAvailable, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("release slot %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSlotNotFound, id)
	}
	return nil
}

func scanSlot(s scanner) (*models.Slot, error) {
	var sl models.Slot
	var branch, task sql.NullString
	var created, updated string
	err := s.Scan(&sl.ID, &sl.ProjectID, &sl.Path, &sl.Label, &branch, &sl.Status, &task, &created, &updated)
	if err != nil {
		return nil, err
	}
	sl.Branch = branch.String
	sl.CurrentTaskID = task.String
	sl.CreatedAt, _ = parseTime(created)
	sl.UpdatedAt, _ = parseTime(updated)
	return &sl, nil
}

// GetSlot returns the slot or nil if it does not exist.
func (db *DB) GetSlot(id int64) (*models.Slot, error) {
	return read(db, func(tx *Tx) (*models.Slot, error) { return tx.GetSlot(id) })
}

// GetSlotByLabel returns the project's slot with the given label, or nil.
func (db *DB) GetSlotByLabel(projectID, label string) (*models.Slot, error) {
	return read(db, func(tx *Tx) (*models.Slot, error) { return tx.GetSlotByLabel(projectID, label) })
}

// ListSlots returns a project's slots ordered by label.
func (db *DB) ListSlots(projectID string, status models.SlotStatus) ([]models.Slot, error) {
	return read(db, func(tx *Tx) ([]models.Slot, error) { return tx.ListSlots(projectID, status) })
}
