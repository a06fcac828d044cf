package exec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// ExecRunner implements CommandRunner, Starter and Signaler using os/exec.
type ExecRunner struct{}

// NewRunner creates a new ExecRunner.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and returns combined stdout/stderr output.
func (r *ExecRunner) Run(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if workDir != "" {
		cmd.Dir = workDir
	}
	return cmd.CombinedOutput()
}

// RunShell executes a shell command through "sh -c".
func (r *ExecRunner) RunShell(ctx context.Context, workDir string, command string) ([]byte, error) {
	return r.Run(ctx, workDir, "sh", "-c", command)
}

// Start launches spec in its own process group with output redirected to
// spec.OutputPath. The child survives the orchestrator exiting.
func (r *ExecRunner) Start(spec StartSpec) (Process, error) {
	out, err := os.Create(spec.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	cmd := exec.Command(spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.Stdin = nil
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		defer out.Close()
		err := cmd.Wait()
		h.mu.Lock()
		h.code = exitCode(cmd, err)
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

// Signal sends sig to pid. A process that has already exited is not an
// error.
func (r *ExecRunner) Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("signal %v: invalid pid %d", sig, pid)
	}
	err := syscall.Kill(pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return fmt.Errorf("signal %v to %d: %w", sig, pid, err)
}

// handle is a started child that is reaped in the background.
type handle struct {
	cmd  *exec.Cmd
	done chan struct{}
	mu   sync.Mutex
	code int
}

func (h *handle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *handle) Poll() (int, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.code, true
	default:
		return 0, false
	}
}

// exitCode maps the result of Wait to a process exit code. Death by signal
// is reported as 128 plus the signal number.
func exitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	if cmd.ProcessState == nil {
		return 1
	}
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := cmd.ProcessState.ExitCode(); code >= 0 {
		return code
	}
	return 1
}

// Verify ExecRunner implements the interfaces at compile time.
var (
	_ CommandRunner = (*ExecRunner)(nil)
	_ Starter       = (*ExecRunner)(nil)
	_ Signaler      = (*ExecRunner)(nil)
)
