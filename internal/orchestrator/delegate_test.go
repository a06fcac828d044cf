package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/ashewang/work-orchestrator/internal/agent"
	"github.com/ashewang/work-orchestrator/internal/exec"
	"github.com/ashewang/work-orchestrator/internal/slots"
	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

type fakeProcess struct{ pid int }

func (p fakeProcess) Pid() int          { return p.pid }
func (p fakeProcess) Poll() (int, bool) { return 0, false }

type fakeStarter struct {
	specs []exec.StartSpec
	err   error
}

func (s *fakeStarter) Start(spec exec.StartSpec) (exec.Process, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.specs = append(s.specs, spec)
	return fakeProcess{pid: 4000 + len(s.specs)}, nil
}

type nopSignaler struct{}

func (nopSignaler) Signal(int, syscall.Signal) error { return nil }

type fixture struct {
	db      *state.DB
	pool    *slots.Pool
	starter *fakeStarter
	orch    *Orchestrator
	repo    string
	slots   []*models.Slot
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := state.OpenAndMigrate(filepath.Join(dir, "wo.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(repo, 0755); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateProject(&models.Project{ID: "web", RepoPath: repo}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{db: db, pool: slots.NewPool(db, nil), starter: &fakeStarter{}, repo: repo}
	for _, label := range []string{"wt-b", "wt-a"} {
		s, err := f.pool.Register("web", filepath.Join(dir, label), "", "feature/"+label)
		if err != nil {
			t.Fatal(err)
		}
		f.slots = append(f.slots, s)
	}
	agents := agent.NewManager(db, f.pool, agent.Config{
		OutputDir: filepath.Join(dir, "out"),
		Starter:   f.starter,
		Signaler:  nopSignaler{},
	})
	f.orch = New(db, f.pool, agents, opts...)
	return f
}

func (f *fixture) task(t *testing.T, title string, deps ...string) *models.Task {
	t.Helper()
	task, err := f.db.CreateTask(title, state.CreateTaskOptions{ProjectID: "web", DependsOn: deps})
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestDelegate_FirstAvailableSlot(t *testing.T) {
	f := setup(t)
	task := f.task(t, "Add login")

	run, err := f.orch.Delegate(context.Background(), task.ID, "use sessions", DelegateOptions{})
	if err != nil {
		t.Fatalf("Delegate failed: %v", err)
	}

	slot, _ := f.pool.GetByLabel("web", "wt-a")
	if run.SlotID != slot.ID || !slot.Occupied() || slot.CurrentTaskID != task.ID {
		t.Errorf("run slot %d, slot = %+v; want wt-a occupied by %s", run.SlotID, slot, task.ID)
	}
	got, _ := f.db.GetTask(task.ID)
	if got.Status != models.TaskStatusInProgress || got.BranchName != "feature/wt-a" {
		t.Errorf("task = %s on %q", got.Status, got.BranchName)
	}
	args := f.starter.specs[0].Args
	if argValue(args, "--max-turns") != "25" {
		t.Errorf("args = %q, want --max-turns 25", args)
	}
	if argValue(args, "--mcp-config") != "" {
		t.Errorf("no tool configuration expected: %q", args)
	}
}

func TestDelegate_ResolvesMCPConfig(t *testing.T) {
	f := setup(t)
	cfg := filepath.Join(f.repo, ".mcp.json")
	if err := os.WriteFile(cfg, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	task := f.task(t, "Use tools")

	if _, err := f.orch.Delegate(context.Background(), task.ID, "", DelegateOptions{}); err != nil {
		t.Fatal(err)
	}
	if got := argValue(f.starter.specs[0].Args, "--mcp-config"); got != cfg {
		t.Errorf("--mcp-config = %q, want %q", got, cfg)
	}
}

func TestDelegate_ExplicitOptionsWin(t *testing.T) {
	f := setup(t, withFileExists(func(string) bool { return true }))
	task := f.task(t, "Tune")

	opts := DelegateOptions{SlotLabel: "wt-b"}
	opts.MaxTurns = 3
	opts.MCPConfig = "/etc/tools.json"
	opts.Model = "opus"
	run, err := f.orch.Delegate(context.Background(), task.ID, "", opts)
	if err != nil {
		t.Fatal(err)
	}
	args := f.starter.specs[0].Args
	if argValue(args, "--max-turns") != "3" || argValue(args, "--mcp-config") != "/etc/tools.json" || argValue(args, "--model") != "opus" {
		t.Errorf("args = %q", args)
	}
	if slot, _ := f.pool.GetByLabel("web", "wt-b"); run.SlotID != slot.ID {
		t.Errorf("run used slot %d, want wt-b", run.SlotID)
	}
}

func TestDelegate_Errors(t *testing.T) {
	f := setup(t)
	busy := f.task(t, "Busy")
	if _, err := f.orch.Delegate(context.Background(), busy.ID, "", DelegateOptions{SlotLabel: "wt-a"}); err != nil {
		t.Fatal(err)
	}
	idle := f.task(t, "Idle")

	_, err := f.orch.Delegate(context.Background(), "missing", "", DelegateOptions{})
	if !errors.Is(err, state.ErrTaskNotFound) {
		t.Errorf("missing task: err = %v", err)
	}

	_, err = f.orch.Delegate(context.Background(), busy.ID, "", DelegateOptions{})
	var running *state.AgentRunningError
	if !errors.As(err, &running) || running.PID != 4001 {
		t.Errorf("running agent: err = %v", err)
	}

	_, err = f.orch.Delegate(context.Background(), idle.ID, "", DelegateOptions{SlotLabel: "wt-z"})
	if !errors.Is(err, state.ErrSlotNotFound) || !strings.Contains(err.Error(), "'wt-z' in project 'web'") {
		t.Errorf("unknown slot: err = %v", err)
	}

	_, err = f.orch.Delegate(context.Background(), idle.ID, "", DelegateOptions{SlotLabel: "wt-a"})
	var occupied *state.SlotOccupiedError
	if !errors.As(err, &occupied) || occupied.TaskID != busy.ID {
		t.Errorf("occupied slot: err = %v", err)
	}

	third := f.task(t, "Third")
	if _, err := f.orch.Delegate(context.Background(), idle.ID, "", DelegateOptions{}); err != nil {
		t.Fatal(err)
	}
	_, err = f.orch.Delegate(context.Background(), third.ID, "", DelegateOptions{})
	if !errors.Is(err, state.ErrNoAvailableSlot) {
		t.Errorf("no slot: err = %v", err)
	}
	if got, _ := f.db.GetTask(third.ID); got.WorktreePath != "" {
		t.Error("failed selection must not assign the task")
	}
}

func TestDelegate_LaunchFailureKeepsAssignment(t *testing.T) {
	f := setup(t)
	task := f.task(t, "Flaky")
	f.starter.err = errors.New("claude: not found")

	if _, err := f.orch.Delegate(context.Background(), task.ID, "", DelegateOptions{}); err == nil {
		t.Fatal("expected launch error")
	}
	slot, _ := f.pool.GetByLabel("web", "wt-a")
	if slot.CurrentTaskID != task.ID {
		t.Fatalf("slot = %+v, want it still held by %s", slot, task.ID)
	}
	got, _ := f.db.GetTask(task.ID)
	if got.WorktreePath != slot.Path || got.Status != models.TaskStatusTodo {
		t.Errorf("task = %s at %q", got.Status, got.WorktreePath)
	}

	f.starter.err = nil
	run, err := f.orch.Delegate(context.Background(), task.ID, "", DelegateOptions{})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if run.SlotID != slot.ID {
		t.Errorf("retry used slot %d, want %d", run.SlotID, slot.ID)
	}
	if free, _ := f.pool.GetByLabel("web", "wt-b"); free.Occupied() {
		t.Error("retry must not take a second slot")
	}
}

func TestDelegateNext(t *testing.T) {
	f := setup(t)
	first := f.task(t, "First")
	f.task(t, "Second", first.ID)

	run, err := f.orch.DelegateNext(context.Background(), "web", "", DelegateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if run.TaskID != first.ID {
		t.Errorf("delegated %s, want %s", run.TaskID, first.ID)
	}

	_, err = f.orch.DelegateNext(context.Background(), "web", "", DelegateOptions{})
	if !errors.Is(err, ErrNothingReady) {
		t.Errorf("err = %v, want ErrNothingReady", err)
	}
}
