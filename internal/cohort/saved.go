package cohort

import (
	"context"
	"fmt"
	"sort"
	"time"

	"reactsql-mimic/internal/kvstore"
)

const savedCohortsKey = "cohort::saved"

// SavedCohort is a named, persisted set of CohortParams plus the metric
// snapshot it produced when it was saved, so listing saved cohorts never
// re-runs their SQL.
type SavedCohort struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Params    Params         `json:"params"`
	Metrics   MetricSnapshot `json:"metrics"`
	CreatedAt string         `json:"created_at"`
}

type savedCohortsDoc struct {
	Items []SavedCohort `json:"items"`
}

// SavedCohortRepo persists saved cohorts through a kvstore.Store, matching
// the get_state_store()-backed _get_saved_cohorts/_set_saved_cohorts
// helpers: an empty or missing document is treated as no saved cohorts
// rather than an error.
type SavedCohortRepo struct {
	store kvstore.Store
}

func NewSavedCohortRepo(store kvstore.Store) *SavedCohortRepo {
	return &SavedCohortRepo{store: store}
}

func (r *SavedCohortRepo) load(ctx context.Context) ([]SavedCohort, error) {
	var doc savedCohortsDoc
	found, err := r.store.Get(ctx, savedCohortsKey, &doc)
	if err != nil {
		return nil, fmt.Errorf("cohort: load saved cohorts: %w", err)
	}
	if !found {
		return nil, nil
	}
	return doc.Items, nil
}

func (r *SavedCohortRepo) save(ctx context.Context, items []SavedCohort) error {
	if err := r.store.Set(ctx, savedCohortsKey, savedCohortsDoc{Items: items}); err != nil {
		return fmt.Errorf("cohort: save saved cohorts: %w", err)
	}
	return nil
}

// List returns all saved cohorts sorted by CreatedAt descending, matching
// list_saved_cohorts's ordering.
func (r *SavedCohortRepo) List(ctx context.Context) ([]SavedCohort, error) {
	items, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	sorted := append([]SavedCohort(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })
	return sorted, nil
}

// Save appends or replaces (by id) a saved cohort and returns it with its
// id/created_at populated when newly created.
func (r *SavedCohortRepo) Save(ctx context.Context, id, name string, params Params, metrics MetricSnapshot, now time.Time) (SavedCohort, error) {
	items, err := r.load(ctx)
	if err != nil {
		return SavedCohort{}, err
	}
	record := SavedCohort{
		ID:        id,
		Name:      name,
		Params:    params.Clamp(),
		Metrics:   metrics,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	replaced := false
	for i, it := range items {
		if it.ID == id {
			record.CreatedAt = it.CreatedAt
			items[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, record)
	}
	if err := r.save(ctx, items); err != nil {
		return SavedCohort{}, err
	}
	return record, nil
}

// Delete removes a saved cohort by id. Deleting a missing id is not an
// error, matching Store.Delete's semantics.
func (r *SavedCohortRepo) Delete(ctx context.Context, id string) error {
	items, err := r.load(ctx)
	if err != nil {
		return err
	}
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return r.save(ctx, out)
}
