// Package exec wraps the operating-system process primitives the
// orchestrator needs: short-lived commands, detached agent processes and
// signals.
package exec

import (
	"context"
	"syscall"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command and returns combined stdout/stderr output.
	// The working directory is set to workDir if non-empty.
	Run(ctx context.Context, workDir string, name string, args ...string) (output []byte, err error)

	// RunShell executes a shell command through "sh -c".
	RunShell(ctx context.Context, workDir string, command string) (output []byte, err error)
}

// Process is a started child process that can be polled without blocking.
type Process interface {
	// Pid returns the operating-system process id.
	Pid() int
	// Poll reports the exit code once the process has exited.
	Poll() (exitCode int, exited bool)
}

// Starter launches detached child processes.
type Starter interface {
	Start(spec StartSpec) (Process, error)
}

// Signaler delivers signals to arbitrary process ids.
type Signaler interface {
	Signal(pid int, sig syscall.Signal) error
}

// StartSpec describes a detached child process.
type StartSpec struct {
	Name string
	Args []string
	// Dir is the working directory.
	Dir string
	// OutputPath receives combined stdout and stderr. It is created or
	// truncated before the process starts.
	OutputPath string
	// Env is appended to the current environment.
	Env []string
}
