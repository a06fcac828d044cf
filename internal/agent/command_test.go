package agent

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ashewang/work-orchestrator/internal/exec"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

func TestClaudeArgs(t *testing.T) {
	budget := 1.25
	tests := []struct {
		name       string
		opts       Options
		structured bool
		want       []string
	}{
		{"minimal", Options{}, false, []string{"-p", "hi"}},
		{"structured", Options{Model: "sonnet"}, true, []string{"-p", "hi", "--output-format", "json", "--model", "sonnet"}},
		{"all limits", Options{Model: "opus", MaxBudget: &budget, PermissionMode: "plan", MaxTurns: 5, MCPConfig: "m.json"}, false,
			[]string{"-p", "hi", "--model", "opus", "--max-budget-usd", "1.25", "--permission-mode", "plan", "--max-turns", "5", "--mcp-config", "m.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClaudeArgs("hi", tt.opts, tt.structured); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ClaudeArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOptionsMerge(t *testing.T) {
	defaults := Options{Model: "sonnet", PermissionMode: "acceptEdits", MaxTurns: 25}
	got := Options{Model: "opus"}.merge(defaults)
	if got.Model != "opus" || got.PermissionMode != "acceptEdits" || got.MaxTurns != 25 {
		t.Errorf("merge = %+v", got)
	}
}

func TestTerminalScript(t *testing.T) {
	script := TerminalScript("fix-it", "/work/wt a", "/out/x.pid", "/out/x.json", []string{"-p", "it's done"})
	for _, want := range []string{
		"#!/bin/bash\n",
		"cd '/work/wt a'\n",
		"echo $$ > /out/x.pid\n",
		`claude -p 'it'\''s done' 2>&1 | tee /out/x.json`,
		"EXIT_CODE=${PIPESTATUS[0]}",
		"read\n",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q:\n%s", want, script)
		}
	}
}

func TestNewRunFiles(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	f := newRunFiles("/out", "task-x", at)
	if f.Output != "/out/agent-task-x-20260304-050607.json" || f.PID != "/out/agent-task-x-20260304-050607.pid" {
		t.Errorf("files = %+v", f)
	}
}

func TestCommandTerminal_Argv(t *testing.T) {
	tests := []struct {
		command string
		want    []string
	}{
		{"open -a Terminal", []string{"open", "-a", "Terminal", "/s.sh"}},
		{"gnome-terminal -- bash {script}", []string{"gnome-terminal", "--", "bash", "/s.sh"}},
		{`xterm -e "bash {script}"`, []string{"xterm", "-e", "bash /s.sh"}},
	}
	for _, tt := range tests {
		term, err := NewCommandTerminal(tt.command, nil)
		if err != nil {
			t.Fatalf("NewCommandTerminal(%q) failed: %v", tt.command, err)
		}
		if got := term.Argv("/s.sh"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Argv(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestCommandTerminal_Open(t *testing.T) {
	starter := &fakeStarter{pid: 9}
	term, _ := NewCommandTerminal("term-host --run", starter)
	if err := term.Open(context.Background(), "/out/a.sh"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	want := exec.StartSpec{Name: "term-host", Args: []string{"--run", "/out/a.sh"}, OutputPath: "/out/a.sh.log"}
	if !reflect.DeepEqual(starter.specs[0], want) {
		t.Errorf("spec = %+v, want %+v", starter.specs[0], want)
	}
}

func TestWaitForPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.pid")
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(path, []byte("5150\n"), 0644)
	}()

	pid, err := WaitForPIDFile(context.Background(), path, 2*time.Second, 10*time.Millisecond)
	if err != nil || pid != 5150 {
		t.Errorf("WaitForPIDFile = %v, %v; want 5150", pid, err)
	}
}

func TestWaitForPIDFile_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.pid")
	start := time.Now()
	pid, err := WaitForPIDFile(context.Background(), path, 50*time.Millisecond, 10*time.Millisecond)
	if pid != models.Unmonitorable || err != ErrPIDTimeout {
		t.Errorf("WaitForPIDFile = %v, %v; want unmonitorable timeout", pid, err)
	}
	if time.Since(start) > time.Second {
		t.Error("wait should be bounded by the timeout")
	}
}

func TestWaitForPIDFile_IgnoresGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	_ = os.WriteFile(path, []byte("not-a-pid"), 0644)
	if pid, err := WaitForPIDFile(context.Background(), path, 30*time.Millisecond, 5*time.Millisecond); pid.Monitorable() || err == nil {
		t.Errorf("WaitForPIDFile = %v, %v; want timeout", pid, err)
	}
}
