package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

const runColumns = `r.id, r.task_id, r.worktree_slot_id, r.pid, r.status, r.instructions, r.model, r.max_budget, r.output_file, r.result_summary, r.exit_code, r.started_at, r.completed_at`

// InsertRun persists a new running agent run. An empty id gets a UUID.
func (tx *Tx) InsertRun(r *models.AgentRun) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Status = models.RunStatusRunning
	if r.StartedAt.IsZero() {
		r.StartedAt = now()
	}
	var budget sql.NullFloat64
	if r.MaxBudget != nil {
		budget = sql.NullFloat64{Float64: *r.MaxBudget, Valid: true}
	}
	slotID := sql.NullInt64{Int64: r.SlotID, Valid: r.SlotID != 0}
	_, err := tx.q.Exec(`
		INSERT INTO agent_runs (id, task_id, worktree_slot_id, pid, status, instructions, model, max_budget, output_file, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.TaskID, slotID, r.PID, r.Status, r.Instructions, r.Model, budget, r.OutputFile, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("insert agent run: %w", err)
	}
	return nil
}

// GetRun returns the run or nil if it does not exist.
func (tx *Tx) GetRun(id string) (*models.AgentRun, error) {
	return tx.getRun(`SELECT `+runColumns+` FROM agent_runs r WHERE r.id = ?`, id)
}

// RunningRunForTask returns the most recent running run of a task, or nil.
func (tx *Tx) RunningRunForTask(taskID string) (*models.AgentRun, error) {
	return tx.getRun(`
		SELECT `+runColumns+` FROM agent_runs r WHERE r.task_id = ? AND r.status = ?
		ORDER BY r.started_at DESC, r.rowid DESC LIMIT 1
	`, taskID, models.RunStatusRunning)
}

// LatestRunForTask returns the most recently started run of a task, or nil.
func (tx *Tx) LatestRunForTask(taskID string) (*models.AgentRun, error) {
	return tx.getRun(`
		SELECT `+runColumns+` FROM agent_runs r WHERE r.task_id = ?
		ORDER BY r.started_at DESC, r.rowid DESC LIMIT 1
	`, taskID)
}

func (tx *Tx) getRun(query string, args ...any) (*models.AgentRun, error) {
	r, err := scanRun(tx.q.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent run: %w", err)
	}
	return r, nil
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Status    models.RunStatus
	ProjectID string
	TaskID    string
}

// ListRuns returns runs newest first.
func (tx *Tx) ListRuns(f RunFilter) ([]models.AgentRun, error) {
	query := `SELECT ` + runColumns + ` FROM agent_runs r`
	var args []any
	if f.ProjectID != "" {
		query += ` JOIN tasks t ON t.id = r.task_id AND t.project_id = ?`
		args = append(args, f.ProjectID)
	}
	query += ` WHERE 1 = 1`
	if f.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, f.Status)
	}
	if f.TaskID != "" {
		query += ` AND r.task_id = ?`
		args = append(args, f.TaskID)
	}
	query += ` ORDER BY r.started_at DESC, r.rowid DESC`

	rows, err := tx.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agent runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AgentRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// FinishRun moves a running run to a terminal status. It reports false
// without error when the run had already left running.
func (tx *Tx) FinishRun(id string, status models.RunStatus, summary string, exitCode *int) (bool, error) {
	if !models.RunStatusRunning.CanTransitionTo(status) {
		return false, fmt.Errorf("finish agent run %s: invalid status %q", id, status)
	}
	var code sql.NullInt64
	if exitCode != nil {
		code = sql.NullInt64{Int64: int64(*exitCode), Valid: true}
	}
	res, err := tx.q.Exec(`
		UPDATE agent_runs SET status = ?, result_summary = ?, exit_code = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, status, nullString(summary), code, formatTime(now()), id, models.RunStatusRunning)
	if err != nil {
		return false, fmt.Errorf("finish agent run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish agent run %s: %w", id, err)
	}
	return n == 1, nil
}

func scanRun(s scanner) (*models.AgentRun, error) {
	var r models.AgentRun
	var slotID sql.NullInt64
	var budget sql.NullFloat64
	var summary, completed sql.NullString
	var exitCode sql.NullInt64
	var started string
	err := s.Scan(&r.ID, &r.TaskID, &slotID, &r.PID, &r.Status, &r.Instructions, &r.Model,
		&budget, &r.OutputFile, &summary, &exitCode, &started, &completed)
	if err != nil {
		return nil, err
	}
	r.SlotID = slotID.Int64
	if budget.Valid {
		b := budget.Float64
		r.MaxBudget = &b
	}
	r.ResultSummary = summary.String
	if exitCode.Valid {
		c := int(exitCode.Int64)
		r.ExitCode = &c
	}
	r.StartedAt, _ = parseTime(started)
	r.CompletedAt = parseNullableTime(completed)
	return &r, nil
}

// GetRun returns the run or nil if it does not exist.
func (db *DB) GetRun(id string) (*models.AgentRun, error) {
	return read(db, func(tx *Tx) (*models.AgentRun, error) { return tx.GetRun(id) })
}

// LatestRunForTask returns the most recently started run of a task, or nil.
func (db *DB) LatestRunForTask(taskID string) (*models.AgentRun, error) {
	return read(db, func(tx *Tx) (*models.AgentRun, error) { return tx.LatestRunForTask(taskID) })
}

// RunningRunForTask returns the running run of a task, or nil.
func (db *DB) RunningRunForTask(taskID string) (*models.AgentRun, error) {
	return read(db, func(tx *Tx) (*models.AgentRun, error) { return tx.RunningRunForTask(taskID) })
}

// ListRuns returns runs matching f, newest first.
func (db *DB) ListRuns(f RunFilter) ([]models.AgentRun, error) {
	return read(db, func(tx *Tx) ([]models.AgentRun, error) { return tx.ListRuns(f) })
}
