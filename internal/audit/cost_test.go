package audit

import (
	"path/filepath"
	"testing"

	"reactsql-mimic/internal/apperr"
)

func TestCostForTokens_RoundsUpToWholeKRW(t *testing.T) {
	if got := CostForTokens(1500, 10); got != 15 {
		t.Fatalf("CostForTokens(1500, 10) = %d, want 15", got)
	}
	if got := CostForTokens(1, 10); got != 1 {
		t.Fatalf("CostForTokens(1, 10) = %d, want 1 (ceil of a fraction)", got)
	}
}

func TestCostForTokens_NonPositiveInputsAreZero(t *testing.T) {
	if got := CostForTokens(0, 10); got != 0 {
		t.Fatalf("CostForTokens(0, 10) = %d, want 0", got)
	}
	if got := CostForTokens(100, 0); got != 0 {
		t.Fatalf("CostForTokens(100, 0) = %d, want 0", got)
	}
	if got := CostForTokens(-5, 10); got != 0 {
		t.Fatalf("CostForTokens(-5, 10) = %d, want 0", got)
	}
}

func TestCostTracker_CheckBudgetExceeded(t *testing.T) {
	tracker := NewCostTracker("", 100)
	tracker.AddCost(60, "orchestrator", nil)
	if err := tracker.CheckBudget(); err != nil {
		t.Fatalf("expected budget not yet exceeded at 60/100, got %v", err)
	}
	tracker.AddCost(50, "orchestrator", nil)
	err := tracker.CheckBudget()
	if err == nil {
		t.Fatalf("expected budget exceeded at 110/100")
	}
	if !apperr.Is(err, apperr.KindBudgetExceeded) {
		t.Fatalf("expected KindBudgetExceeded, got %v", err)
	}
}

func TestCostTracker_ZeroLimitNeverExceeded(t *testing.T) {
	tracker := NewCostTracker("", 0)
	tracker.AddCost(1_000_000, "orchestrator", nil)
	if err := tracker.CheckBudget(); err != nil {
		t.Fatalf("expected a zero limit to disable the budget gate, got %v", err)
	}
}

func TestCostTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewCostTracker("", 0)
	tracker.AddCost(10, "stage1", nil)
	snap := tracker.Snapshot()
	snap.WindowEvents[0].KRW = 999
	snap2 := tracker.Snapshot()
	if snap2.WindowEvents[0].KRW != 10 {
		t.Fatalf("mutating a snapshot leaked into tracker state: %d", snap2.WindowEvents[0].KRW)
	}
}

func TestCostTracker_WindowIsCapped(t *testing.T) {
	tracker := NewCostTracker("", 0)
	tracker.windowSize = 3
	for i := 0; i < 10; i++ {
		tracker.AddCost(1, "stage", nil)
	}
	snap := tracker.Snapshot()
	if len(snap.WindowEvents) != 3 {
		t.Fatalf("WindowEvents length = %d, want 3", len(snap.WindowEvents))
	}
	if snap.TotalKRW != 10 {
		t.Fatalf("TotalKRW = %d, want 10 (cap only trims the window, not the total)", snap.TotalKRW)
	}
}

func TestCostTracker_PersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cost.json")

	t1 := NewCostTracker(path, 1000)
	t1.AddCost(42, "orchestrator", nil)

	t2 := NewCostTracker(path, 1000)
	snap := t2.Snapshot()
	if snap.TotalKRW != 42 {
		t.Fatalf("reloaded TotalKRW = %d, want 42", snap.TotalKRW)
	}
}
