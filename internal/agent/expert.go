package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	contextpkg "reactsql-mimic/internal/context"
)

const expertSystemPrompt = `You are the Expert agent for a MIMIC-IV clinical text-to-SQL system. A draft
SQL query was flagged as risky (high complexity or a dangerous pattern). Review the draft against
the question and the retrieved context, and return a corrected, safe, read-only Oracle SQL query.
Respond with ONLY a JSON object: {"final_sql": string, "used_tables": [string],
"risk_score": number between 0 and 1}. If the draft is already correct, return it unchanged.`

// Review asks the expert agent to review (and if needed, replace) a
// risky draft. Its output replaces the engineer's draft wholesale.
func Review(ctx context.Context, llm llms.Model, question string, draft SQLDraft, candidate contextpkg.CandidateContext) (SQLDraft, string, error) {
	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nDraft SQL: %s\nDraft risk score: %.2f\n\nQuestion: %s\n",
		expertSystemPrompt, RenderContext(candidate), draft.FinalSQL, draft.RiskScore, question)
	var out SQLDraft
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
