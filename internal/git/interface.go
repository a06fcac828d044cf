// Package git provides the version-control working-copy provider: git
// worktree and branch operations addressed by repository path.
package git

import (
	"context"
	"fmt"
	"strings"
)

// Worktree is one entry of `git worktree list`.
type Worktree struct {
	Path     string
	Branch   string
	Head     string
	Bare     bool
	Detached bool
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// ListWorktrees returns every working copy of repo, the main one first.
	ListWorktrees(ctx context.Context, repo string) ([]Worktree, error)
	// AddWorktree creates a working copy at path. With createBranch set the
	// branch is created from base, otherwise the existing branch is checked out.
	AddWorktree(ctx context.Context, repo, path, branch, base string, createBranch bool) error
	// RemoveWorktree removes the working copy at path.
	RemoveWorktree(ctx context.Context, repo, path string, force bool) error
	// PruneWorktrees drops administrative entries of deleted working copies.
	PruneWorktrees(ctx context.Context, repo string) error
}

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// BranchExists returns true if the local branch exists.
	BranchExists(ctx context.Context, repo, branch string) (bool, error)
	// DeleteBranch deletes a local branch; force uses -D.
	DeleteBranch(ctx context.Context, repo, branch string, force bool) error
	// CurrentBranch returns the branch checked out in dir.
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// StatusOperations defines the interface for working-copy status.
type StatusOperations interface {
	// Status returns `git status --short` for the working copy at path.
	Status(ctx context.Context, path string) (string, error)
}

// Provider defines the complete interface the orchestrator needs from git.
// Consumers should prefer the focused interfaces when possible.
type Provider interface {
	WorktreeOperations
	BranchOperations
	StatusOperations
}

// Error is returned when a git command fails. It carries the command's
// own message.
type Error struct {
	Args   []string
	Output string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, strings.TrimSpace(e.Output))
}

func (e *Error) Unwrap() error {
	return e.Err
}
