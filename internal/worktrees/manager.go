// Package worktrees manages per-task git worktrees: a fresh branch and
// working copy created for one task and removed when it is finished.
package worktrees

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashewang/work-orchestrator/internal/git"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

// DefaultDir is where task worktrees are created, relative to the repository.
const DefaultDir = ".worktrees"

// Info describes a task's worktree after Create.
type Info struct {
	TaskID         string `json:"task_id"`
	Path           string `json:"worktree_path"`
	Branch         string `json:"branch"`
	AlreadyExisted bool   `json:"already_existed"`
}

// RemoveResult reports what Remove did. A worktree that git refused to
// remove is reported with Removed false and the reason.
type RemoveResult struct {
	TaskID  string `json:"task_id"`
	Removed bool   `json:"removed"`
	Path    string `json:"path,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Status is the working-copy status of a task's worktree.
type Status struct {
	TaskID string `json:"task_id"`
	Path   string `json:"worktree_path,omitempty"`
	Branch string `json:"branch,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Entry is one git worktree, matched to the task that uses it if any.
type Entry struct {
	Path       string            `json:"path"`
	Branch     string            `json:"branch"`
	Head       string            `json:"head"`
	TaskID     string            `json:"task_id,omitempty"`
	TaskTitle  string            `json:"task_title,omitempty"`
	TaskStatus models.TaskStatus `json:"task_status,omitempty"`
}

// CreateOptions configures Create.
type CreateOptions struct {
	// Repo is the main repository path.
	Repo string
	// Base is the branch a new task branch starts from. Defaults to main.
	Base string
	// Branch overrides the default task/<id> branch name.
	Branch string
}

// Manager creates and removes task worktrees.
type Manager struct {
	db  *state.DB
	git git.Provider
	dir string
	mu  sync.Mutex
}

// NewManager creates a worktree manager. dir is the worktree directory,
// relative to the repository unless absolute; empty uses DefaultDir.
func NewManager(db *state.DB, g git.Provider, dir string) *Manager {
	if dir == "" {
		dir = DefaultDir
	}
	return &Manager{db: db, git: g, dir: dir}
}

// PathFor returns where the worktree for taskID lives in repo.
func (m *Manager) PathFor(repo, taskID string) string {
	base := m.dir
	if !filepath.IsAbs(base) {
		base = filepath.Join(repo, base)
	}
	return filepath.Join(base, "task-"+taskID)
}

// Create makes a worktree for the task on branch task/<id>, creating the
// branch when it does not exist. A task whose recorded worktree still
// exists is returned as is.
func (m *Manager) Create(ctx context.Context, taskID string, opts CreateOptions) (*Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}
	if task.WorktreePath != "" {
		if _, err := os.Stat(task.WorktreePath); err == nil {
			return &Info{TaskID: taskID, Path: task.WorktreePath, Branch: task.BranchName, AlreadyExisted: true}, nil
		}
	}

	branch := opts.Branch
	if branch == "" {
		branch = "task/" + taskID
	}
	base := opts.Base
	if base == "" {
		base = "main"
	}
	path := m.PathFor(opts.Repo, taskID)

	exists, err := m.git.BranchExists(ctx, opts.Repo, branch)
	if err != nil {
		return nil, fmt.Errorf("create worktree: %w", err)
	}
	if err := m.git.AddWorktree(ctx, opts.Repo, path, branch, base, !exists); err != nil {
		return nil, fmt.Errorf("create worktree: %w", err)
	}

	err = m.db.Transaction(func(tx *state.Tx) error {
		if err := tx.SetTaskWorktree(taskID, path, branch); err != nil {
			return err
		}
		return tx.LogEvent(taskID, models.EventWorktreeCreated, "", path)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[worktrees] created %s on %s for task %s", path, branch, taskID)
	return &Info{TaskID: taskID, Path: path, Branch: branch}, nil
}

// Remove deletes the task's worktree and clears its path. With force, local
// changes are discarded and git failures are returned as errors; without
// it they are reported in the result. deleteBranch also deletes the task
// branch, best-effort.
func (m *Manager) Remove(ctx context.Context, taskID, repo string, force, deleteBranch bool) (*RemoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(ctx, taskID, repo, force, deleteBranch)
}

func (m *Manager) remove(ctx context.Context, taskID, repo string, force, deleteBranch bool) (*RemoveResult, error) {
	task, err := m.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}
	if task.WorktreePath == "" {
		return &RemoveResult{TaskID: taskID, Reason: "No worktree assigned"}, nil
	}

	var slot *models.Slot
	err = m.db.View(func(tx *state.Tx) (err error) {
		slot, err = tx.SlotForTask(taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if slot != nil && slot.Path == task.WorktreePath {
		return &RemoveResult{TaskID: taskID, Path: slot.Path, Reason: fmt.Sprintf("worktree is slot '%s', release it instead", slot.Label)}, nil
	}

	path := task.WorktreePath
	if _, err := os.Stat(path); err == nil {
		if err := m.git.RemoveWorktree(ctx, repo, path, force); err != nil {
			var gerr *git.Error
			if !force && errors.As(err, &gerr) {
				return &RemoveResult{TaskID: taskID, Path: path, Reason: gerr.Error()}, nil
			}
			return nil, fmt.Errorf("remove worktree: %w", err)
		}
	}

	if deleteBranch && task.BranchName != "" {
		if ok, err := m.git.BranchExists(ctx, repo, task.BranchName); err == nil && ok {
			if err := m.git.DeleteBranch(ctx, repo, task.BranchName, force); err != nil {
				log.Printf("[worktrees] keeping branch %s: %v", task.BranchName, err)
			}
		}
	}

	err = m.db.Transaction(func(tx *state.Tx) error {
		if err := tx.SetTaskWorktree(taskID, "", task.BranchName); err != nil {
			return err
		}
		return tx.LogEvent(taskID, models.EventWorktreeRemoved, path, "")
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[worktrees] removed %s for task %s", path, taskID)
	return &RemoveResult{TaskID: taskID, Removed: true, Path: path}, nil
}

// Status reports `git status --short` for the task's worktree, or
// "(clean)". Missing worktrees are reported in Error.
func (m *Manager) Status(ctx context.Context, taskID string) (*Status, error) {
	task, err := m.db.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", state.ErrTaskNotFound, taskID)
	}
	if task.WorktreePath == "" {
		return &Status{TaskID: taskID, Error: "No worktree assigned"}, nil
	}
	if _, err := os.Stat(task.WorktreePath); err != nil {
		return &Status{TaskID: taskID, Error: "Worktree path does not exist: " + task.WorktreePath}, nil
	}

	out, err := m.git.Status(ctx, task.WorktreePath)
	if err != nil {
		return nil, fmt.Errorf("worktree status: %w", err)
	}
	if out == "" {
		out = "(clean)"
	}
	return &Status{TaskID: taskID, Path: task.WorktreePath, Branch: task.BranchName, Status: out}, nil
}

// CleanupDone removes the worktrees of every done task in the project.
func (m *Manager) CleanupDone(ctx context.Context, projectID, repo string) ([]RemoveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks, err := m.db.TasksWithWorktree(projectID, models.TaskStatusDone)
	if err != nil {
		return nil, err
	}
	var results []RemoveResult
	for _, t := range tasks {
		res, err := m.remove(ctx, t.ID, repo, false, false)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// List returns every git worktree of repo matched to the task using it.
func (m *Manager) List(ctx context.Context, repo string) ([]Entry, error) {
	wts, err := m.git.ListWorktrees(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	tasks, err := m.db.TasksWithWorktree("", "")
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byPath[filepath.Clean(t.WorktreePath)] = t
	}

	entries := make([]Entry, 0, len(wts))
	for _, wt := range wts {
		e := Entry{Path: wt.Path, Branch: wt.Branch, Head: wt.Head}
		if t, ok := byPath[filepath.Clean(wt.Path)]; ok {
			e.TaskID, e.TaskTitle, e.TaskStatus = t.ID, t.Title, t.Status
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Prune drops git's records of worktrees deleted from disk.
func (m *Manager) Prune(ctx context.Context, repo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.git.PruneWorktrees(ctx, repo); err != nil {
		return fmt.Errorf("prune worktrees: %w", err)
	}
	return nil
}
