package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// DefaultMemoryCategory is used when Remember is given no category.
const DefaultMemoryCategory = "general"

const memoryColumns = `m.id, m.key, m.value, m.category, m.project_id, m.created_at, m.updated_at`

// Remember stores value under key, replacing any existing value for the
// same key and project. An empty projectID stores a global memory.
func (tx *Tx) Remember(key, value, category, projectID string) (*models.Memory, error) {
	if key == "" {
		return nil, errors.New("remember: key is required")
	}
	if category == "" {
		category = DefaultMemoryCategory
	}
	ts := formatTime(now())
	_, err := tx.q.Exec(`
		INSERT INTO memories (key, value, category, project_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key, project_id) DO UPDATE SET
			value = excluded.value, category = excluded.category, updated_at = excluded.updated_at
	`, key, value, category, projectID, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("remember %s: %w", key, err)
	}
	return tx.RecallByKey(key, projectID)
}

// RecallByKey returns the memory stored under key, or nil.
func (tx *Tx) RecallByKey(key, projectID string) (*models.Memory, error) {
	m, err := scanMemory(tx.q.QueryRow(`
		SELECT `+memoryColumns+` FROM memories m WHERE m.key = ? AND m.project_id = ?
	`, key, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("recall %s: %w", key, err)
	}
	return m, nil
}

// MemoryFilter narrows memory listing and search. Empty fields match all.
type MemoryFilter struct {
	Category  string
	ProjectID string
}

// SearchMemories runs a full-text query over key, value and category,
// best matches first. The query uses FTS5 syntax.
func (tx *Tx) SearchMemories(query string, f MemoryFilter) ([]models.Memory, error) {
	q := `
		SELECT ` + memoryColumns + ` FROM memories m
		JOIN memories_fts ON m.id = memories_fts.rowid
		WHERE memories_fts MATCH ?`
	args := []any{query}
	q, args = f.apply(q, args)
	q += ` ORDER BY memories_fts.rank`
	return tx.queryMemories(q, args...)
}

// ListMemories returns memories, most recently updated first.
func (tx *Tx) ListMemories(f MemoryFilter) ([]models.Memory, error) {
	q, args := f.apply(`SELECT `+memoryColumns+` FROM memories m WHERE 1 = 1`, nil)
	q += ` ORDER BY m.updated_at DESC, m.id DESC`
	return tx.queryMemories(q, args...)
}

// Forget deletes the memory under key. It reports whether one existed.
func (tx *Tx) Forget(key, projectID string) (bool, error) {
	res, err := tx.q.Exec(`DELETE FROM memories WHERE key = ? AND project_id = ?`, key, projectID)
	if err != nil {
		return false, fmt.Errorf("forget %s: %w", key, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (f MemoryFilter) apply(q string, args []any) (string, []any) {
	if f.Category != "" {
		q += ` AND m.category = ?`
		args = append(args, f.Category)
	}
	if f.ProjectID != "" {
		q += ` AND m.project_id = ?`
		args = append(args, f.ProjectID)
	}
	return q, args
}

func (tx *Tx) queryMemories(q string, args ...any) ([]models.Memory, error) {
	rows, err := tx.q.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []models.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMemory(s scanner) (*models.Memory, error) {
	var m models.Memory
	var created, updated string
	if err := s.Scan(&m.ID, &m.Key, &m.Value, &m.Category, &m.ProjectID, &created, &updated); err != nil {
		return nil, err
	}
	m.CreatedAt, _ = parseTime(created)
	m.UpdatedAt, _ = parseTime(updated)
	return &m, nil
}

// MatchAny turns free text into an FTS5 query matching any of its words.
// It returns "" when the text has no searchable words.
func MatchAny(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		terms = append(terms, `"`+strings.ToLower(w)+`"`)
	}
	return strings.Join(terms, " OR ")
}

// Remember stores value under key.
func (db *DB) Remember(key, value, category, projectID string) (*models.Memory, error) {
	return write(db, func(tx *Tx) (*models.Memory, error) { return tx.Remember(key, value, category, projectID) })
}

// RecallByKey returns the memory stored under key, or nil.
func (db *DB) RecallByKey(key, projectID string) (*models.Memory, error) {
	return read(db, func(tx *Tx) (*models.Memory, error) { return tx.RecallByKey(key, projectID) })
}

// SearchMemories runs a full-text query.
func (db *DB) SearchMemories(query string, f MemoryFilter) ([]models.Memory, error) {
	return read(db, func(tx *Tx) ([]models.Memory, error) { return tx.SearchMemories(query, f) })
}

// ListMemories returns memories, most recently updated first.
func (db *DB) ListMemories(f MemoryFilter) ([]models.Memory, error) {
	return read(db, func(tx *Tx) ([]models.Memory, error) { return tx.ListMemories(f) })
}

// Forget deletes the memory under key.
func (db *DB) Forget(key, projectID string) (bool, error) {
	return write(db, func(tx *Tx) (bool, error) { return tx.Forget(key, projectID) })
}
