package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	contextpkg "reactsql-mimic/internal/context"
)

// PlanIntent is the planner agent's JSON contract: a structured reading
// of the question's analytic intent, forwarded to the engineer as
// context rather than re-derived from scratch, so the engineer sees the
// same reading of the question the planner committed to.
type PlanIntent struct {
	Cohort       string   `json:"cohort"`
	Metric       string   `json:"metric"`
	TimeGrain    string   `json:"time_grain"`
	Comparison   string   `json:"comparison"`
	Filters      []string `json:"filters"`
	OutputShape  string   `json:"output_shape"`
}

const plannerSystemPrompt = `You are the Planner agent for a MIMIC-IV clinical text-to-SQL system.
Given a clinical question and retrieved schema/example/glossary context, produce a JSON object
describing the question's analytic intent. Respond with ONLY a JSON object with these keys:
{"cohort": string, "metric": string, "time_grain": string, "comparison": string,
 "filters": [string], "output_shape": string}
Use empty string/array values for fields that do not apply. Do not include any other text.`

// Plan asks the planner agent for the question's intent JSON.
func Plan(ctx context.Context, llm llms.Model, question string, candidate contextpkg.CandidateContext) (PlanIntent, string, error) {
	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion: %s\n", plannerSystemPrompt, RenderContext(candidate), question)
	var out PlanIntent
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
