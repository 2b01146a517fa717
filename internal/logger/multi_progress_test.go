package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMultiProgress_SeedsTasksPending(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite", "postgres"})
	if len(mp.tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(mp.tasks))
	}
	for _, task := range mp.tasks {
		if task.State != TaskPending {
			t.Fatalf("expected every task to start pending, got %+v", task)
		}
	}
	if mp.taskIndex["postgres"] != 1 {
		t.Fatalf("expected taskIndex to map names to their slice position")
	}
}

func TestMultiProgress_StartTaskSetsRunning(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite"})
	mp.StartTask("sqlite")
	if mp.tasks[0].State != TaskRunning {
		t.Fatalf("expected state TaskRunning, got %v", mp.tasks[0].State)
	}
	if mp.tasks[0].Phase != "Starting..." {
		t.Fatalf("unexpected phase: %q", mp.tasks[0].Phase)
	}
}

func TestMultiProgress_UpdateTaskIgnoresOutOfRangeProgress(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite"})
	mp.StartTask("sqlite")
	mp.UpdateTask("sqlite", "linking schema", 42)
	if mp.tasks[0].Progress != 42 || mp.tasks[0].Phase != "linking schema" {
		t.Fatalf("unexpected task state: %+v", mp.tasks[0])
	}
	mp.UpdateTask("sqlite", "out of range", 150)
	if mp.tasks[0].Progress != 42 {
		t.Fatalf("expected an out-of-range progress value to be ignored, got %d", mp.tasks[0].Progress)
	}
}

func TestMultiProgress_CompleteTaskSetsDoneAndFullProgress(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite"})
	mp.StartTask("sqlite")
	mp.CompleteTask("sqlite")
	if mp.tasks[0].State != TaskDone || mp.tasks[0].Progress != 100 {
		t.Fatalf("unexpected task state: %+v", mp.tasks[0])
	}
}

func TestMultiProgress_FailTaskRecordsError(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite"})
	mp.StartTask("sqlite")
	mp.FailTask("sqlite", errors.New("connection refused"))
	if mp.tasks[0].State != TaskFailed || mp.tasks[0].Error != "connection refused" {
		t.Fatalf("unexpected task state: %+v", mp.tasks[0])
	}
}

func TestMultiProgress_UnknownTaskNameIsANoOp(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"sqlite"})
	mp.StartTask("does-not-exist")
	mp.UpdateTask("does-not-exist", "x", 50)
	if mp.tasks[0].State != TaskPending {
		t.Fatalf("expected the only real task to be untouched by an unknown-name call")
	}
}

func TestMultiProgress_SummaryCountsDoneAndFailed(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"a", "b", "c"})
	mp.StartTask("a")
	mp.CompleteTask("a")
	mp.StartTask("b")
	mp.FailTask("b", errors.New("boom"))

	summary := mp.Summary()
	if !strings.Contains(summary, "Total:     3") {
		t.Fatalf("expected total count in summary, got %q", summary)
	}
	if !strings.Contains(summary, "Done:    1") {
		t.Fatalf("expected 1 done in summary, got %q", summary)
	}
	if !strings.Contains(summary, "Failed:  1") {
		t.Fatalf("expected 1 failed in summary, got %q", summary)
	}
}

func TestMultiProgress_SummaryTruncatesLongErrorMessages(t *testing.T) {
	mp := NewMultiProgress("eval", []string{"a"})
	mp.StartTask("a")
	longMsg := strings.Repeat("x", 200)
	mp.FailTask("a", errors.New(longMsg))

	summary := mp.Summary()
	if strings.Contains(summary, strings.Repeat("x", 100)) {
		t.Fatalf("expected the long error message to be truncated in the summary")
	}
	if !strings.Contains(summary, "...") {
		t.Fatalf("expected truncation ellipsis in summary")
	}
}
