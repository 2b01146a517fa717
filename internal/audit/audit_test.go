package audit

import (
	"path/filepath"
	"testing"
)

func TestNewLog_EmptyPathIsInMemoryOnly(t *testing.T) {
	l, err := NewLog("")
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l.Append(Event{Type: "audit", Status: StatusSuccess})
	if len(l.Recent(10)) != 1 {
		t.Fatalf("expected one in-memory event")
	}
}

func TestAppend_AssignsMonotonicTimestamps(t *testing.T) {
	l, err := NewLog("")
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l.Append(Event{TS: 100, Type: "audit"})
	l.Append(Event{TS: 50, Type: "audit"}) // should still get ts >= 101
	recent := l.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	var tsSeen []int64
	for _, ev := range recent {
		tsSeen = append(tsSeen, ev.TS)
	}
	if tsSeen[0] < tsSeen[1] {
		t.Fatalf("expected Recent to return most-recent-first, got %v", tsSeen)
	}
	for _, ts := range tsSeen {
		if ts < 100 {
			t.Fatalf("expected monotonic assigned timestamp >= 100, got %v", tsSeen)
		}
	}
}

func TestRecent_RespectsLimit(t *testing.T) {
	l, _ := NewLog("")
	for i := 0; i < 5; i++ {
		l.Append(Event{TS: int64(i + 1), Type: "audit"})
	}
	recent := l.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].TS != 5 || recent[1].TS != 4 {
		t.Fatalf("expected newest-first [5,4], got %v", recent)
	}
}

func TestRollingStats_SuccessRateAndActiveUsers(t *testing.T) {
	l, _ := NewLog("")
	l.Append(Event{TS: 1, Type: "audit", Status: StatusSuccess, User: User{Name: "alice"}})
	l.Append(Event{TS: 2, Type: "audit", Status: StatusError, User: User{Name: "bob"}})
	l.Append(Event{TS: 3, Type: "audit", Status: StatusSuccess, User: User{Name: "alice"}})
	l.Append(Event{TS: 4, Type: "other", Status: StatusSuccess, User: User{Name: "carol"}})

	stats := l.RollingStats()
	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3 (non-audit events excluded)", stats.Total)
	}
	if stats.ActiveUsers != 2 {
		t.Fatalf("ActiveUsers = %d, want 2 (alice, bob)", stats.ActiveUsers)
	}
	wantRate := 200.0 / 3.0
	wantRate = roundTo(wantRate, 1)
	if stats.SuccessRate != wantRate {
		t.Fatalf("SuccessRate = %v, want %v", stats.SuccessRate, wantRate)
	}
}

func TestRollingStats_NoEventsIsZeroRate(t *testing.T) {
	l, _ := NewLog("")
	stats := l.RollingStats()
	if stats.SuccessRate != 0 || stats.Total != 0 {
		t.Fatalf("expected zero-value stats, got %+v", stats)
	}
}

func TestNewLog_ReloadsPersistedEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	l1, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog: %v", err)
	}
	l1.Append(Event{Type: "audit", Status: StatusSuccess, Question: "how many patients"})
	l1.Append(Event{Type: "audit", Status: StatusError, Question: "bad query"})

	l2, err := NewLog(path)
	if err != nil {
		t.Fatalf("NewLog (reload): %v", err)
	}
	recent := l2.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 reloaded events, got %d", len(recent))
	}
}
