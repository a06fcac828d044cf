package models

import "testing"

func TestRunStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to RunStatus
		want     bool
	}{
		{RunStatusRunning, RunStatusCompleted, true},
		{RunStatusRunning, RunStatusFailed, true},
		{RunStatusRunning, RunStatusCancelled, true},
		{RunStatusRunning, RunStatusRunning, false},
		{RunStatusCompleted, RunStatusRunning, false},
		{RunStatusFailed, RunStatusCompleted, false},
		{RunStatusCancelled, RunStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPID_Monitorable(t *testing.T) {
	if Unmonitorable.Monitorable() {
		t.Error("Unmonitorable must not be monitorable")
	}
	if PID(0).Monitorable() {
		t.Error("pid 0 must not be monitorable")
	}
	if !PID(123).Monitorable() {
		t.Error("pid 123 should be monitorable")
	}
	if Unmonitorable.String() != "unknown" {
		t.Errorf("Unmonitorable.String() = %q", Unmonitorable.String())
	}
	if PID(42).String() != "42" {
		t.Errorf("PID(42).String() = %q", PID(42).String())
	}
}

func TestSlotStatus_Valid(t *testing.T) {
	if !SlotAvailable.Valid() || !SlotOccupied.Valid() {
		t.Error("known slot statuses should be valid")
	}
	if SlotStatus("reserved").Valid() {
		t.Error("unknown slot status should be invalid")
	}
}
