package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	contextpkg "reactsql-mimic/internal/context"
)

const repairSystemPrompt = `You are the Repair agent for a MIMIC-IV clinical text-to-SQL system.
A SQL query failed against Oracle with the given error, and the deterministic error-template
rewriter (ORA-00904/ORA-01722/timeout templates) did not change the query. Produce a corrected,
read-only Oracle SQL query that fixes the error while still answering the question. Respond with
ONLY a JSON object: {"final_sql": string, "used_tables": [string], "risk_score": number between 0
and 1}.`

// Repair asks the repair agent to fix sql after it failed with
// errorMessage and the error-template table made no change; it is the
// last-resort step before the error is surfaced.
func Repair(ctx context.Context, llm llms.Model, question, sql, errorMessage string, candidate contextpkg.CandidateContext) (SQLDraft, string, error) {
	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nFailing SQL: %s\nOracle error: %s\n\nQuestion: %s\n",
		repairSystemPrompt, RenderContext(candidate), sql, errorMessage, question)
	var out SQLDraft
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
