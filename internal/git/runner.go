package git

import (
	"bufio"
	"context"
	"strings"

	"github.com/ashewang/work-orchestrator/internal/exec"
)

// ExecRunner implements Provider by shelling out to the git binary.
type ExecRunner struct {
	cmd exec.CommandRunner
}

// NewRunner creates a git provider backed by os/exec.
func NewRunner() *ExecRunner {
	return &ExecRunner{cmd: exec.NewRunner()}
}

// NewRunnerWithCommands creates a git provider with a custom command runner (for testing).
func NewRunnerWithCommands(cmd exec.CommandRunner) *ExecRunner {
	return &ExecRunner{cmd: cmd}
}

// run executes git in dir and returns its trimmed output.
func (r *ExecRunner) run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := r.cmd.Run(ctx, dir, "git", args...)
	if err != nil {
		return "", &Error{Args: args, Output: string(out), Err: err}
	}
	return strings.TrimSpace(string(out)), nil
}

// ListWorktrees returns every working copy of repo.
func (r *ExecRunner) ListWorktrees(ctx context.Context, repo string) ([]Worktree, error) {
	out, err := r.run(ctx, repo, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return ParseWorktreeList(out), nil
}

// AddWorktree creates a working copy at path.
func (r *ExecRunner) AddWorktree(ctx context.Context, repo, path, branch, base string, createBranch bool) error {
	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch, path)
		if base != "" {
			args = append(args, base)
		}
	} else {
		args = append(args, path, branch)
	}
	_, err := r.run(ctx, repo, args...)
	return err
}

// RemoveWorktree removes the working copy at path.
func (r *ExecRunner) RemoveWorktree(ctx context.Context, repo, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)
	_, err := r.run(ctx, repo, args...)
	return err
}

// PruneWorktrees drops administrative entries of deleted working copies.
func (r *ExecRunner) PruneWorktrees(ctx context.Context, repo string) error {
	_, err := r.run(ctx, repo, "worktree", "prune")
	return err
}

// BranchExists returns true if the local branch exists.
func (r *ExecRunner) BranchExists(ctx context.Context, repo, branch string) (bool, error) {
	out, err := r.run(ctx, repo, "branch", "--list", branch)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// DeleteBranch deletes a local branch.
func (r *ExecRunner) DeleteBranch(ctx context.Context, repo, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := r.run(ctx, repo, "branch", flag, branch)
	return err
}

// CurrentBranch returns the branch checked out in dir.
func (r *ExecRunner) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return r.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// Status returns `git status --short` for the working copy at path.
func (r *ExecRunner) Status(ctx context.Context, path string) (string, error) {
	return r.run(ctx, path, "status", "--short")
}

// ParseWorktreeList parses the output of 'git worktree list --porcelain'.
func ParseWorktreeList(output string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	flush := func() {
		if current != nil {
			worktrees = append(worktrees, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			flush()
			current = &Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case current == nil:
			continue
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "bare":
			current.Bare = true
		case line == "detached":
			current.Detached = true
		}
	}
	flush()

	return worktrees
}

// Verify ExecRunner implements Provider at compile time.
var _ Provider = (*ExecRunner)(nil)
