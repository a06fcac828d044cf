package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ashewang/work-orchestrator/internal/state"
	"github.com/ashewang/work-orchestrator/internal/worktrees"
	"github.com/ashewang/work-orchestrator/pkg/models"
)

type fakeLister struct {
	entries []worktrees.Entry
	err     error
	repo    string
}

func (f *fakeLister) List(_ context.Context, repo string) ([]worktrees.Entry, error) {
	f.repo = repo
	return f.entries, f.err
}

func setupServer(t *testing.T, cfg Config) (*state.DB, http.Handler) {
	t.Helper()
	db, err := state.OpenAndMigrate(filepath.Join(t.TempDir(), "wo.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateProject(&models.Project{ID: "web", Name: "Website", RepoPath: "/src/web"}); err != nil {
		t.Fatal(err)
	}
	return db, NewServer(db, cfg).Handler()
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: decode %q: %v", path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestProjects(t *testing.T) {
	_, h := setupServer(t, Config{})

	var projects []models.Project
	if code := get(t, h, "/api/projects", &projects); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(projects) != 1 || projects[0].Name != "Website" {
		t.Errorf("projects = %+v", projects)
	}

	var project models.Project
	if code := get(t, h, "/api/projects/web", &project); code != http.StatusOK || project.RepoPath != "/src/web" {
		t.Errorf("GET project = %d %+v", code, project)
	}

	var body map[string]string
	if code := get(t, h, "/api/projects/nope", &body); code != http.StatusNotFound || body["error"] != "Project not found" {
		t.Errorf("missing project = %d %v", code, body)
	}
}

func TestProjectTasks(t *testing.T) {
	db, h := setupServer(t, Config{})
	parent, _ := db.CreateTask("Checkout flow", state.CreateTaskOptions{ProjectID: "web"})
	if _, err := db.BreakDownTask(parent.ID, []models.SubtaskSpec{{Title: "Cart"}, {Title: "Payment"}}); err != nil {
		t.Fatal(err)
	}
	done, _ := db.CreateTask("Landing page", state.CreateTaskOptions{ProjectID: "web"})
	if _, err := db.UpdateTaskStatus(done.ID, models.TaskStatusDone); err != nil {
		t.Fatal(err)
	}

	var tasks []models.Task
	if code := get(t, h, "/api/projects/web/tasks", &tasks); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d top-level tasks, want 2", len(tasks))
	}
	for _, task := range tasks {
		if task.ID == parent.ID && len(task.Subtasks) != 2 {
			t.Errorf("subtasks = %+v", task.Subtasks)
		}
	}

	tasks = nil
	get(t, h, "/api/projects/web/tasks?status=done", &tasks)
	if len(tasks) != 1 || tasks[0].ID != done.ID {
		t.Errorf("done tasks = %+v", tasks)
	}

	if code := get(t, h, "/api/projects/web/tasks?status=sleeping", nil); code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", code)
	}

	var empty []models.Task
	get(t, h, "/api/projects/other/tasks", &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown project tasks = %v, want []", empty)
	}
}

func TestProjectSummary(t *testing.T) {
	db, h := setupServer(t, Config{})
	for _, title := range []string{"One", "Two", "Three"} {
		if _, err := db.CreateTask(title, state.CreateTaskOptions{ProjectID: "web"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.UpdateTaskStatus("one", models.TaskStatusDone); err != nil {
		t.Fatal(err)
	}

	var summary models.ProjectSummary
	if code := get(t, h, "/api/projects/web/summary", &summary); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if summary.Total != 3 || summary.Counts[models.TaskStatusDone] != 1 || summary.ProgressPct != 33.3 {
		t.Errorf("summary = %+v", summary)
	}

	var ready []models.Task
	get(t, h, "/api/projects/web/ready", &ready)
	if len(ready) != 2 {
		t.Errorf("ready = %+v", ready)
	}
}

func TestGetTask(t *testing.T) {
	db, h := setupServer(t, Config{})
	task, _ := db.CreateTask("Fix header", state.CreateTaskOptions{ProjectID: "web"})
	if _, err := db.UpdateTaskStatus(task.ID, models.TaskStatusInProgress); err != nil {
		t.Fatal(err)
	}

	var detail TaskDetail
	if code := get(t, h, "/api/tasks/"+task.ID, &detail); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if detail.Title != "Fix header" || len(detail.Events) != 2 || detail.Events[1].NewValue != "in-progress" {
		t.Errorf("detail = %+v", detail)
	}

	var body map[string]string
	if code := get(t, h, "/api/tasks/nope", &body); code != http.StatusNotFound || body["error"] != "Task not found" {
		t.Errorf("missing task = %d %v", code, body)
	}
}

func TestSlotsAndRuns(t *testing.T) {
	db, h := setupServer(t, Config{})
	task, _ := db.CreateTask("Fix header", state.CreateTaskOptions{ProjectID: "web"})
	err := db.Transaction(func(tx *state.Tx) error {
		slot := &models.Slot{ProjectID: "web", Path: "/wt/a", Label: "a"}
		if err := tx.InsertSlot(slot); err != nil {
			return err
		}
		return tx.InsertRun(&models.AgentRun{TaskID: task.ID, SlotID: slot.ID, PID: 42, Model: "sonnet"})
	})
	if err != nil {
		t.Fatal(err)
	}

	var slots []models.Slot
	get(t, h, "/api/projects/web/slots?status=available", &slots)
	if len(slots) != 1 || slots[0].Label != "a" {
		t.Errorf("slots = %+v", slots)
	}

	var runs []models.AgentRun
	get(t, h, "/api/tasks/"+task.ID+"/runs", &runs)
	if len(runs) != 1 || runs[0].PID != 42 {
		t.Errorf("task runs = %+v", runs)
	}

	runs = nil
	get(t, h, "/api/runs?status=running&project=web", &runs)
	if len(runs) != 1 {
		t.Errorf("running runs = %+v", runs)
	}
	if code := get(t, h, "/api/runs?status=zombie", nil); code != http.StatusBadRequest {
		t.Errorf("invalid run status = %d, want 400", code)
	}
}

func TestWorktrees(t *testing.T) {
	lister := &fakeLister{entries: []worktrees.Entry{{Path: "/src/web", Branch: "main"}, {Path: "/src/web/.worktrees/task-a", Branch: "task/a", TaskID: "a"}}}
	_, h := setupServer(t, Config{Repo: "/src/web", Worktrees: lister})

	var entries []worktrees.Entry
	if code := get(t, h, "/api/worktrees", &entries); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(entries) != 2 || entries[1].TaskID != "a" || lister.repo != "/src/web" {
		t.Errorf("entries = %+v (repo %q)", entries, lister.repo)
	}

	lister.err = errors.New("not a git repository")
	entries = nil
	if code := get(t, h, "/api/worktrees", &entries); code != http.StatusOK || entries == nil || len(entries) != 0 {
		t.Errorf("failing git = %d %v, want 200 []", code, entries)
	}
}

func TestMetricsAndIndex(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "wo_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()
	_, h := setupServer(t, Config{Gatherer: reg})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "wo_test_total 1") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "wo dashboard") {
		t.Errorf("index = %d", rec.Code)
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, h := setupServer(t, Config{})
	if code := get(t, h, "/metrics", nil); code != http.StatusNotFound {
		t.Errorf("metrics without gatherer = %d, want 404", code)
	}
}
