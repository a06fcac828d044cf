package state

import (
	"errors"
	"testing"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

func TestProjects(t *testing.T) {
	db := setupTestDB(t)

	p := &models.Project{ID: "web", Name: "Web", RepoPath: "/src/web"}
	if err := db.CreateProject(p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if p.DefaultBranch != "main" {
		t.Errorf("DefaultBranch = %q, want main", p.DefaultBranch)
	}

	p.SlackChannel = "#web"
	if err := db.UpdateProject(p); err != nil {
		t.Fatalf("UpdateProject failed: %v", err)
	}
	got, err := db.GetProject("web")
	if err != nil || got == nil {
		t.Fatalf("GetProject = %v, %v", got, err)
	}
	if got.SlackChannel != "#web" {
		t.Errorf("SlackChannel = %q", got.SlackChannel)
	}

	missing := &models.Project{ID: "ghost"}
	if err := db.UpdateProject(missing); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestEnsureProject(t *testing.T) {
	db := setupTestDB(t)

	p, err := db.EnsureProject(DefaultProjectID, "/src/shop")
	if err != nil {
		t.Fatalf("EnsureProject failed: %v", err)
	}
	if p.Name != "shop" {
		t.Errorf("Name = %q, want shop", p.Name)
	}
	again, err := db.EnsureProject(DefaultProjectID, "/elsewhere")
	if err != nil {
		t.Fatal(err)
	}
	if again.RepoPath != "/src/shop" {
		t.Errorf("EnsureProject replaced the existing project: %+v", again)
	}
	all, _ := db.ListProjects()
	if len(all) != 1 {
		t.Errorf("ListProjects = %d projects, want 1", len(all))
	}
}

func insertSlot(t *testing.T, db *DB, label string) *models.Slot {
	t.Helper()
	s := &models.Slot{ProjectID: DefaultProjectID, Path: "/wt/" + label, Label: label, Branch: label + "-branch"}
	if err := db.Transaction(func(tx *Tx) error { return tx.InsertSlot(s) }); err != nil {
		t.Fatalf("InsertSlot failed: %v", err)
	}
	return s
}

func TestSlotRows(t *testing.T) {
	db := setupTestDB(t)
	mustCreate(t, db, "Work", CreateTaskOptions{})
	b := insertSlot(t, db, "beta")
	a := insertSlot(t, db, "alpha")

	slots, err := db.ListSlots(DefaultProjectID, "")
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	if len(slots) != 2 || slots[0].Label != "alpha" || slots[1].Label != "beta" {
		t.Errorf("ListSlots order = %+v", slots)
	}

	err = db.Transaction(func(tx *Tx) error { return tx.OccupySlot(b.ID, "work") })
	if err != nil {
		t.Fatalf("OccupySlot failed: %v", err)
	}
	avail, _ := db.ListSlots(DefaultProjectID, models.SlotAvailable)
	if len(avail) != 1 || avail[0].ID != a.ID {
		t.Errorf("available = %+v, want only alpha", avail)
	}

	var held *models.Slot
	_ = db.View(func(tx *Tx) (err error) {
		held, err = tx.SlotForTask("work")
		return err
	})
	if held == nil || held.ID != b.ID {
		t.Errorf("SlotForTask = %+v, want beta", held)
	}

	for i := 0; i < 2; i++ {
		if err := db.Transaction(func(tx *Tx) error { return tx.ReleaseSlot(b.ID) }); err != nil {
			t.Fatalf("ReleaseSlot (call %d) failed: %v", i, err)
		}
	}
	got, _ := db.GetSlot(b.ID)
	if got.Status != models.SlotAvailable || got.CurrentTaskID != "" {
		t.Errorf("released slot = %+v", got)
	}

	byLabel, _ := db.GetSlotByLabel(DefaultProjectID, "alpha")
	if byLabel == nil || byLabel.ID != a.ID {
		t.Errorf("GetSlotByLabel = %+v", byLabel)
	}
	err = db.Transaction(func(tx *Tx) error { return tx.ReleaseSlot(999) })
	if !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("err = %v, want ErrSlotNotFound", err)
	}
}

func TestSlotRows_DuplicatePathRejected(t *testing.T) {
	db := setupTestDB(t)
	insertSlot(t, db, "alpha")

	dup := &models.Slot{ProjectID: DefaultProjectID, Path: "/wt/alpha", Label: "again"}
	if err := db.Transaction(func(tx *Tx) error { return tx.InsertSlot(dup) }); err == nil {
		t.Error("expected unique path violation")
	}
}

func TestRunRows(t *testing.T) {
	db := setupTestDB(t)
	mustCreate(t, db, "Work", CreateTaskOptions{})
	slot := insertSlot(t, db, "alpha")

	budget := 2.5
	run := &models.AgentRun{TaskID: "work", SlotID: slot.ID, PID: 123, Model: "sonnet", MaxBudget: &budget}
	if err := db.Transaction(func(tx *Tx) error { return tx.InsertRun(run) }); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("InsertRun did not assign an id")
	}

	second := &models.AgentRun{TaskID: "work", SlotID: slot.ID, PID: 456}
	if err := db.Transaction(func(tx *Tx) error { return tx.InsertRun(second) }); err == nil {
		t.Fatal("a second running run for the same task must be rejected")
	}

	running, err := db.RunningRunForTask("work")
	if err != nil || running == nil {
		t.Fatalf("RunningRunForTask = %v, %v", running, err)
	}
	if running.PID != 123 || *running.MaxBudget != 2.5 || running.SlotID != slot.ID {
		t.Errorf("running run = %+v", running)
	}

	code := 0
	var finished bool
	err = db.Transaction(func(tx *Tx) (err error) {
		finished, err = tx.FinishRun(run.ID, models.RunStatusCompleted, "ok", &code)
		return err
	})
	if err != nil || !finished {
		t.Fatalf("FinishRun = %v, %v", finished, err)
	}

	err = db.Transaction(func(tx *Tx) (err error) {
		finished, err = tx.FinishRun(run.ID, models.RunStatusFailed, "late", nil)
		return err
	})
	if err != nil || finished {
		t.Errorf("second FinishRun = %v, %v; want false, nil", finished, err)
	}

	got, _ := db.GetRun(run.ID)
	if got.Status != models.RunStatusCompleted || got.ResultSummary != "ok" || got.CompletedAt == nil {
		t.Errorf("finished run = %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", got.ExitCode)
	}

	latest, _ := db.LatestRunForTask("work")
	if latest == nil || latest.ID != run.ID {
		t.Errorf("LatestRunForTask = %+v", latest)
	}
	none, _ := db.RunningRunForTask("work")
	if none != nil {
		t.Errorf("RunningRunForTask after finish = %+v, want nil", none)
	}

	runs, _ := db.ListRuns(RunFilter{ProjectID: DefaultProjectID, Status: models.RunStatusCompleted})
	if len(runs) != 1 {
		t.Errorf("ListRuns = %d runs, want 1", len(runs))
	}
	runs, _ = db.ListRuns(RunFilter{ProjectID: "other"})
	if len(runs) != 0 {
		t.Errorf("ListRuns(other) = %d runs, want 0", len(runs))
	}
}

func TestFinishRun_RejectsRunningTarget(t *testing.T) {
	db := setupTestDB(t)
	err := db.Transaction(func(tx *Tx) error {
		_, err := tx.FinishRun("x", models.RunStatusRunning, "", nil)
		return err
	})
	if err == nil {
		t.Error("expected error finishing into running")
	}
}

func TestMemories(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.Remember("auth-flow", "tokens are refreshed by the gateway", "", "web"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	m, err := db.Remember("auth-flow", "tokens are refreshed by the session service", "architecture", "web")
	if err != nil {
		t.Fatalf("Remember (update) failed: %v", err)
	}
	if m.Category != "architecture" || m.Value != "tokens are refreshed by the session service" {
		t.Errorf("updated memory = %+v", m)
	}
	if _, err := db.Remember("style", "use gofmt", "", ""); err != nil {
		t.Fatal(err)
	}

	all, _ := db.ListMemories(MemoryFilter{})
	if len(all) != 2 {
		t.Errorf("ListMemories = %d, want 2", len(all))
	}

	found, err := db.SearchMemories(MatchAny("Refresh session tokens"), MemoryFilter{ProjectID: "web"})
	if err != nil {
		t.Fatalf("SearchMemories failed: %v", err)
	}
	if len(found) != 1 || found[0].Key != "auth-flow" {
		t.Errorf("SearchMemories = %+v", found)
	}
	stale, _ := db.SearchMemories(`"gateway"`, MemoryFilter{})
	if len(stale) != 0 {
		t.Errorf("full-text index kept the replaced value: %+v", stale)
	}

	global, _ := db.RecallByKey("style", "")
	if global == nil || global.Category != DefaultMemoryCategory {
		t.Errorf("RecallByKey = %+v", global)
	}

	ok, err := db.Forget("style", "")
	if err != nil || !ok {
		t.Errorf("Forget = %v, %v", ok, err)
	}
	ok, _ = db.Forget("style", "")
	if ok {
		t.Error("second Forget should report false")
	}
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix login-bug", `"fix" OR "login" OR "bug"`},
		{"a b", ""},
		{`Quote "this"`, `"quote" OR "this"`},
	}
	for _, tt := range tests {
		if got := MatchAny(tt.in); got != tt.want {
			t.Errorf("MatchAny(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
