package inference

import (
	"context"
	"regexp"
	"strings"

	"reactsql-mimic/internal/kvstore"
)

// DemoAnswer is a canned, already-vetted answer stored under a canonical
// question key, used by the demo_mode short-circuit on exact/normalized
// question match. Shortcutting here skips translate/retrieve/engineer/
// expert/postprocess/align entirely, not just the policy gate.
type DemoAnswer struct {
	Question string           `json:"question"`
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

var demoNormalizeRE = regexp.MustCompile(`[^a-z0-9\s가-힣]+`)
var demoCollapseRE = regexp.MustCompile(`\s+`)

// CanonicalDemoKey normalizes question the way the demo cache keys it:
// lowercase, strip punctuation, collapse whitespace. Two questions that
// differ only by case or punctuation hit the same cached answer.
func CanonicalDemoKey(question string) string {
	lower := strings.ToLower(strings.TrimSpace(question))
	stripped := demoNormalizeRE.ReplaceAllString(lower, " ")
	return strings.TrimSpace(demoCollapseRE.ReplaceAllString(stripped, " "))
}

func demoCacheKey(canonical string) string {
	return "demo::" + canonical
}

// DemoCache wraps a kvstore.Store with the demo-answer-specific key
// scheme and exact+canonical lookup order.
type DemoCache struct {
	Store kvstore.Store
}

// Lookup tries the exact question first, then its canonical form.
func (d DemoCache) Lookup(ctx context.Context, question string) (DemoAnswer, bool) {
	if d.Store == nil {
		return DemoAnswer{}, false
	}
	var ans DemoAnswer
	if ok, err := d.Store.Get(ctx, demoCacheKey(question), &ans); err == nil && ok {
		return ans, true
	}
	canonical := CanonicalDemoKey(question)
	if canonical == "" {
		return DemoAnswer{}, false
	}
	if ok, err := d.Store.Get(ctx, demoCacheKey(canonical), &ans); err == nil && ok {
		return ans, true
	}
	return DemoAnswer{}, false
}

// Save stores ans under both its exact and canonical keys so either lookup
// path hits it next time.
func (d DemoCache) Save(ctx context.Context, ans DemoAnswer) error {
	if d.Store == nil {
		return nil
	}
	if err := d.Store.Set(ctx, demoCacheKey(ans.Question), ans); err != nil {
		return err
	}
	canonical := CanonicalDemoKey(ans.Question)
	if canonical == "" || canonical == ans.Question {
		return nil
	}
	return d.Store.Set(ctx, demoCacheKey(canonical), ans)
}
