package cohort

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"reactsql-mimic/internal/kvstore"
)

func newTestRepo(t *testing.T) *SavedCohortRepo {
	t.Helper()
	store, err := kvstore.NewJSONStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	return NewSavedCohortRepo(store)
}

func TestSavedCohortRepo_SaveAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saved, err := repo.Save(ctx, "c1", "My Cohort", DefaultParams(), MetricSnapshot{PatientCount: 100}, now)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.CreatedAt == "" {
		t.Fatalf("expected CreatedAt populated")
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != "c1" {
		t.Fatalf("expected 1 saved cohort with id c1, got %v", list)
	}
}

func TestSavedCohortRepo_SaveReplacesByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	first, _ := repo.Save(ctx, "c1", "First Name", DefaultParams(), MetricSnapshot{}, t1)
	_, err := repo.Save(ctx, "c1", "Renamed", DefaultParams(), MetricSnapshot{PatientCount: 5}, t2)
	if err != nil {
		t.Fatalf("Save (replace): %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected replacement in place, not a second row; got %v", list)
	}
	if list[0].Name != "Renamed" {
		t.Fatalf("expected name updated to Renamed, got %q", list[0].Name)
	}
	// CreatedAt is preserved across a replace.
	if list[0].CreatedAt != first.CreatedAt {
		t.Fatalf("expected CreatedAt preserved across replace, got %q want %q", list[0].CreatedAt, first.CreatedAt)
	}
}

func TestSavedCohortRepo_ListOrderedByCreatedAtDescending(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	repo.Save(ctx, "old", "Old", DefaultParams(), MetricSnapshot{}, older)
	repo.Save(ctx, "new", "New", DefaultParams(), MetricSnapshot{}, newer)

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "old" {
		t.Fatalf("expected newest-first order, got %v", list)
	}
}

func TestSavedCohortRepo_DeleteRemovesByID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()
	repo.Save(ctx, "c1", "A", DefaultParams(), MetricSnapshot{}, now)
	repo.Save(ctx, "c2", "B", DefaultParams(), MetricSnapshot{}, now)

	if err := repo.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := repo.List(ctx)
	if len(list) != 1 || list[0].ID != "c2" {
		t.Fatalf("expected only c2 remaining, got %v", list)
	}
}

func TestSavedCohortRepo_DeleteMissingIDIsNotAnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if err := repo.Delete(ctx, "does-not-exist"); err != nil {
		t.Fatalf("expected deleting a missing id to succeed, got %v", err)
	}
}

func TestSavedCohortRepo_ListEmptyWhenNothingSaved(t *testing.T) {
	repo := newTestRepo(t)
	list, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected an empty list, got %v", list)
	}
}
