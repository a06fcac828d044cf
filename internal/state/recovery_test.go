package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

func TestNewRecoveryManager(t *testing.T) {
	db := setupTestDB(t)
	rm := NewRecoveryManager(db, nil)
	if rm == nil {
		t.Fatal("NewRecoveryManager returned nil")
	}
	if rm.db != db {
		t.Error("RecoveryManager.db not set correctly")
	}
	if rm.alive == nil {
		t.Error("nil checker should default to IsProcessAlive")
	}
}

func TestInspect_NothingStored(t *testing.T) {
	db := setupTestDB(t)
	report, err := NewRecoveryManager(db, nil).Inspect(DefaultProjectID)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestRecoveryManager_Inspect(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()

	for _, title := range []string{"Dead", "Lost", "Idle", "Fine"} {
		mustCreate(t, db, title, CreateTaskOptions{})
	}
	slots := map[string]*models.Slot{}
	for _, label := range []string{"dead", "lost", "idle", "fine"} {
		s := &models.Slot{ProjectID: DefaultProjectID, Path: filepath.Join(dir, label), Label: label}
		if label != "idle" {
			if err := os.Mkdir(s.Path, 0755); err != nil {
				t.Fatal(err)
			}
		}
		if err := db.Transaction(func(tx *Tx) error { return tx.InsertSlot(s) }); err != nil {
			t.Fatalf("InsertSlot %s: %v", label, err)
		}
		if err := db.Transaction(func(tx *Tx) error { return tx.OccupySlot(s.ID, label) }); err != nil {
			t.Fatal(err)
		}
		slots[label] = s
	}

	pids := map[string]models.PID{"dead": 100, "lost": models.Unmonitorable, "fine": 200}
	for task, pid := range pids {
		r := &models.AgentRun{TaskID: task, SlotID: slots[task].ID, PID: pid}
		if err := db.Transaction(func(tx *Tx) error { return tx.InsertRun(r) }); err != nil {
			t.Fatal(err)
		}
	}

	probed := map[models.PID]bool{}
	alive := func(pid models.PID) bool {
		probed[pid] = true
		return pid == 200
	}
	report, err := NewRecoveryManager(db, alive).Inspect(DefaultProjectID)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if len(report.DeadRuns) != 1 || report.DeadRuns[0].TaskID != "dead" {
		t.Errorf("DeadRuns = %+v", report.DeadRuns)
	}
	if len(report.UnmonitorableRuns) != 1 || report.UnmonitorableRuns[0].TaskID != "lost" {
		t.Errorf("UnmonitorableRuns = %+v", report.UnmonitorableRuns)
	}
	if probed[models.Unmonitorable] {
		t.Error("unmonitorable pid was probed")
	}
	if len(report.IdleOccupiedSlots) != 1 || report.IdleOccupiedSlots[0].Label != "idle" {
		t.Errorf("IdleOccupiedSlots = %+v", report.IdleOccupiedSlots)
	}
	if len(report.MissingSlots) != 1 || report.MissingSlots[0].Label != "idle" {
		t.Errorf("MissingSlots = %+v", report.MissingSlots)
	}
	if report.Empty() {
		t.Error("report should not be empty")
	}
}

func TestIsProcessAlive(t *testing.T) {
	if !IsProcessAlive(models.PID(os.Getpid())) {
		t.Error("current process should be alive")
	}
	if IsProcessAlive(models.Unmonitorable) {
		t.Error("unmonitorable pid must report false")
	}
	if IsProcessAlive(0) {
		t.Error("pid 0 must report false")
	}
}
