package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

func waitExit(t *testing.T, p Process) int {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if code, done := p.Poll(); done {
			return code
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("process did not exit")
	return -1
}

func TestRun(t *testing.T) {
	r := NewRunner()
	out, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(out), "hello") || !strings.Contains(string(out), "oops") {
		t.Errorf("output = %q, want stdout and stderr", out)
	}
}

func TestRunShell_WorkDir(t *testing.T) {
	dir := t.TempDir()
	out, err := NewRunner().RunShell(context.Background(), dir, "pwd")
	if err != nil {
		t.Fatalf("RunShell failed: %v", err)
	}
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(string(out)))
	want, _ := filepath.EvalSymlinks(dir)
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}
}

func TestStart_CapturesOutputAndExitCode(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.json")

	p, err := NewRunner().Start(StartSpec{
		Name:       "sh",
		Args:       []string{"-c", `echo '{"result":"ok"}'; echo warn >&2; exit 3`},
		Dir:        dir,
		OutputPath: outPath,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if p.Pid() <= 0 {
		t.Errorf("Pid = %d", p.Pid())
	}
	if code := waitExit(t, p); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), `"result":"ok"`) || !strings.Contains(string(data), "warn") {
		t.Errorf("output = %q", data)
	}
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := NewRunner().Start(StartSpec{
		Name:       "definitely-not-a-real-binary-xyz",
		OutputPath: filepath.Join(t.TempDir(), "out"),
	})
	if err == nil {
		t.Fatal("expected error starting a missing binary")
	}
}

func TestSignal_TerminatesAndIgnoresExited(t *testing.T) {
	r := NewRunner()
	p, err := r.Start(StartSpec{Name: "sleep", Args: []string{"30"}, OutputPath: filepath.Join(t.TempDir(), "out")})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := r.Signal(p.Pid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}
	if code := waitExit(t, p); code != 128+int(syscall.SIGTERM) {
		t.Errorf("exit code = %d, want %d", code, 128+int(syscall.SIGTERM))
	}

	// The child is reaped now, so the pid no longer exists.
	if err := r.Signal(p.Pid(), syscall.SIGTERM); err != nil {
		t.Errorf("signalling an exited process should not fail: %v", err)
	}
}

func TestSignal_InvalidPid(t *testing.T) {
	if err := NewRunner().Signal(-1, syscall.SIGTERM); err == nil {
		t.Error("expected error for pid -1")
	}
}
