package agent

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	contextpkg "reactsql-mimic/internal/context"
)

// SQLDraft is the shared JSON contract for both the Engineer and Repair
// agents: a candidate final SQL string, the tables it touches, and the
// engineer's own self-assessed risk score (consumed by the expert gate).
type SQLDraft struct {
	FinalSQL  string   `json:"final_sql"`
	UsedTables []string `json:"used_tables"`
	RiskScore float64  `json:"risk_score"`
}

const engineerSystemPrompt = `You are the Engineer agent for a MIMIC-IV clinical text-to-SQL system
targeting Oracle SQL. Given a clinical question, a structured intent plan, and retrieved
schema/example/template/glossary context, write a single read-only SELECT (or WITH ... SELECT)
query that answers the question against the MIMIC-IV schema. Respond with ONLY a JSON object:
{"final_sql": string, "used_tables": [string], "risk_score": number between 0 and 1}
Do not include any text outside the JSON object. Never produce DDL or DML.`

// Engineer asks the engineer agent to draft SQL for question, given the
// planner's intent and the retrieved candidate context.
func Engineer(ctx context.Context, llm llms.Model, question string, plan PlanIntent, candidate contextpkg.CandidateContext) (SQLDraft, string, error) {
	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nIntent plan: %+v\n\nQuestion: %s\n",
		engineerSystemPrompt, RenderContext(candidate), plan, question)
	var out SQLDraft
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
