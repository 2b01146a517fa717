package audit

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"

	"reactsql-mimic/internal/apperr"
)

// CostEvent records the KRW cost and metadata of a single LLM call.
type CostEvent struct {
	KRW   int            `json:"krw"`
	Stage string         `json:"stage"`
	Extra map[string]any `json:"extra,omitempty"`
}

// CostState is the persisted shape of the cost tracker.
type CostState struct {
	TotalKRW     int         `json:"total_krw"`
	WindowEvents []CostEvent `json:"window_events"`
}

// CostTracker is a process-wide, mutex-guarded read-modify-write counter
// enforcing the "never exceed limit" invariant from the concurrency
// section. The window is capped so the persisted file does not grow
// unboundedly.
type CostTracker struct {
	mu         sync.Mutex
	path       string
	limit      int
	windowSize int
	state      CostState
}

// NewCostTracker loads prior state from path (if present) and returns a
// tracker enforcing limit KRW as the hard budget ceiling.
func NewCostTracker(path string, limit int) *CostTracker {
	t := &CostTracker{path: path, limit: limit, windowSize: 200}
	if path == "" {
		return t
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	_ = json.Unmarshal(data, &t.state)
	return t
}

// Snapshot returns a copy of the current state.
func (t *CostTracker) Snapshot() CostState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.state
	out.WindowEvents = append([]CostEvent(nil), t.state.WindowEvents...)
	return out
}

// CheckBudget returns a BudgetExceeded error if the cumulative cost
// already meets or exceeds the configured limit. Call before issuing a
// new LLM call so the budget gate short-circuits further work.
func (t *CostTracker) CheckBudget() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.limit > 0 && t.state.TotalKRW >= t.limit {
		return apperr.New(apperr.KindBudgetExceeded, "cumulative cost exceeds budget_limit")
	}
	return nil
}

// AddCost records krw won of cost for the given stage, persisting the
// updated state. The read-modify-write happens under the tracker's mutex
// so concurrent HTTP handlers never double-count or race past the limit.
func (t *CostTracker) AddCost(krw int, stage string, extra map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.TotalKRW += krw
	t.state.WindowEvents = append(t.state.WindowEvents, CostEvent{KRW: krw, Stage: stage, Extra: extra})
	if len(t.state.WindowEvents) > t.windowSize {
		t.state.WindowEvents = t.state.WindowEvents[len(t.state.WindowEvents)-t.windowSize:]
	}
	t.persistLocked()
}

func (t *CostTracker) persistLocked() {
	if t.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(t.path, data, 0o644)
}

// CostForTokens computes the KRW cost of totalTokens at the configured
// per-1k-token rate, matching the orchestrator's
// math.ceil(tokens/1000 * rate) rounding.
func CostForTokens(totalTokens int, krwPer1kTokens float64) int {
	if totalTokens <= 0 || krwPer1kTokens <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalTokens) / 1000.0 * krwPer1kTokens))
}
