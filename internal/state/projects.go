package state

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// DefaultProjectID is used when the caller does not name a project.
const DefaultProjectID = "default"

const projectColumns = `id, name, repo_path, default_branch, slack_channel, created_at, updated_at`

// CreateProject inserts a new project. An empty default branch becomes main.
func (tx *Tx) CreateProject(p *models.Project) error {
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	if p.Name == "" {
		p.Name = p.ID
	}
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	_, err := tx.q.Exec(`
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.RepoPath, p.DefaultBranch, nullString(p.SlackChannel),
		formatTime(ts), formatTime(ts))
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject returns the project or nil if it does not exist.
func (tx *Tx) GetProject(id string) (*models.Project, error) {
	row := tx.q.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project ordered by name.
func (tx *Tx) ListProjects() ([]models.Project, error) {
	rows, err := tx.q.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject overwrites the mutable project fields.
func (tx *Tx) UpdateProject(p *models.Project) error {
	p.UpdatedAt = now()
	res, err := tx.q.Exec(`
		UPDATE projects SET name = ?, repo_path = ?, default_branch = ?, slack_channel = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.RepoPath, p.DefaultBranch, nullString(p.SlackChannel), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update project %s: %w", p.ID, ErrProjectNotFound)
	}
	return nil
}

// EnsureProject returns the project with the given id, creating it from
// repoPath when it is missing.
func (tx *Tx) EnsureProject(id, repoPath string) (*models.Project, error) {
	p, err := tx.GetProject(id)
	if err != nil || p != nil {
		return p, err
	}
	name := id
	if repoPath != "" && id == DefaultProjectID {
		name = filepath.Base(repoPath)
	}
	p = &models.Project{ID: id, Name: name, RepoPath: repoPath}
	if err := tx.CreateProject(p); err != nil {
		return nil, err
	}
	return p, nil
}

func scanProject(s scanner) (*models.Project, error) {
	var p models.Project
	var slack sql.NullString
	var created, updated string
	if err := s.Scan(&p.ID, &p.Name, &p.RepoPath, &p.DefaultBranch, &slack, &created, &updated); err != nil {
		return nil, err
	}
	p.SlackChannel = slack.String
	p.CreatedAt, _ = parseTime(created)
	p.UpdatedAt, _ = parseTime(updated)
	return &p, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// CreateProject inserts a new project.
func (db *DB) CreateProject(p *models.Project) error {
	return db.Transaction(func(tx *Tx) error { return tx.CreateProject(p) })
}

// GetProject returns the project or nil if it does not exist.
func (db *DB) GetProject(id string) (*models.Project, error) {
	return read(db, func(tx *Tx) (*models.Project, error) { return tx.GetProject(id) })
}

// ListProjects returns every project ordered by name.
func (db *DB) ListProjects() ([]models.Project, error) {
	return read(db, func(tx *Tx) ([]models.Project, error) { return tx.ListProjects() })
}

// UpdateProject overwrites the mutable project fields.
func (db *DB) UpdateProject(p *models.Project) error {
	return db.Transaction(func(tx *Tx) error { return tx.UpdateProject(p) })
}

// EnsureProject returns the project, creating it when missing.
func (db *DB) EnsureProject(id, repoPath string) (*models.Project, error) {
	return write(db, func(tx *Tx) (*models.Project, error) { return tx.EnsureProject(id, repoPath) })
}
