package agent

import (
	"context"
	"testing"

	contextpkg "reactsql-mimic/internal/context"
)

func TestPlan_ReturnsParsedIntent(t *testing.T) {
	llm := &fakeLLM{response: `{"cohort": "ICU patients", "metric": "mortality rate", "time_grain": "", "comparison": "", "filters": ["age >= 65"], "output_shape": "scalar"}`}
	out, _, err := Plan(context.Background(), llm, "ICU mortality rate for elderly patients", contextpkg.CandidateContext{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if out.Cohort != "ICU patients" || out.Metric != "mortality rate" || len(out.Filters) != 1 {
		t.Fatalf("unexpected plan: %+v", out)
	}
}
