package inference

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"

	"reactsql-mimic/internal/adapter"
	"reactsql-mimic/internal/agent"
	"reactsql-mimic/internal/apperr"
	"reactsql-mimic/internal/audit"
	contextpkg "reactsql-mimic/internal/context"
	"reactsql-mimic/internal/logger"
	"reactsql-mimic/internal/policy"
	"reactsql-mimic/internal/postprocess"
	"reactsql-mimic/internal/risk"
	"reactsql-mimic/internal/sqlalign"
)

// Result is everything Pipeline.Answer returns about one question: the
// executed SQL, its result set, and the trail of decisions (risk,
// applied rules, alignment issues) the audit log and the caller both want.
type Result struct {
	QID         string
	Question    string
	QuestionEN  string
	SQL         string
	Columns     []string
	Rows        []map[string]any
	RowCount    int
	Risk        risk.Info
	Mode        string // "demo" | "agent" | "expert"
	AppliedTags []string
	Issues      []sqlalign.Issue
	Warnings    []string
}

// Pipeline is the orchestrator; it owns every stage between a raw
// question and an executed result, driving the agent, retrieval,
// postprocess, and policy packages in a fixed order.
type Pipeline struct {
	LLM     llms.Model
	Builder *contextpkg.Builder
	DB      adapter.DBAdapter
	Audit   *audit.Log
	Cost    *audit.CostTracker
	Records *RecordStore
	Demo    DemoCache
	Config  AppConfig
	Logger  *logger.Logger
}

// chargeLLM records the token cost for stage once the call has happened,
// then applies the budget gate: once the cumulative KRW cost reaches
// budget_limit the pipeline stops with BudgetExceeded before the NEXT LLM
// call is made, so an in-flight call is never aborted mid-way.
func (p *Pipeline) chargeLLM(stage, prompt, response string) error {
	if p.Cost == nil {
		return nil
	}
	tokens := contextpkg.CountTokens(prompt) + contextpkg.CountTokens(response)
	p.Cost.AddCost(audit.CostForTokens(tokens, p.Config.CostPer1KTok), stage, nil)
	return p.Cost.CheckBudget()
}

func (p *Pipeline) logPhase(phase string) {
	if p.Logger != nil {
		p.Logger.SetPhase(phase)
	}
}

// Answer runs the full state machine: demo lookup -> translate ->
// retrieve -> plan -> engineer -> expert gate -> postprocess -> align ->
// policy -> execute -> retry/repair.
func (p *Pipeline) Answer(ctx context.Context, question string) (Result, error) {
	start := time.Now()
	result, err := p.answer(ctx, question)
	p.audit(question, result, err, time.Since(start))
	return result, err
}

func (p *Pipeline) answer(ctx context.Context, question string) (Result, error) {
	result := Result{Question: question}

	if p.Config.DemoMode {
		p.logPhase("Demo lookup")
		if ans, ok := p.Demo.Lookup(ctx, question); ok {
			result.SQL = ans.SQL
			result.Columns = ans.Columns
			result.Rows = ans.Rows
			result.RowCount = ans.RowCount
			result.Mode = "demo"
			result.QID = p.store(result)
			return result, nil
		}
	}

	if canonical, ok := postprocess.Shortcut(question, 1000); ok {
		p.logPhase("Templated shortcut")
		result.SQL = canonical
		result.Mode = "agent"
		result.AppliedTags = []string{"templated_shortcut"}
		if _, policyErr := policy.Precheck(canonical, question, p.Config.MaxDBJoins, p.Config.AllowedTables); policyErr != nil {
			return result, policyErr
		}
		qr, execErr := p.DB.ExecuteQuery(ctx, canonical)
		if execErr != nil {
			return result, apperr.Wrap(apperr.KindDriverError, "query execution failed", execErr)
		}
		result.Columns = qr.Columns
		result.Rows = qr.Rows
		result.RowCount = qr.RowCount
		result.QID = p.store(result)
		return result, nil
	}

	questionEN := question
	if agent.ContainsHangul(question) {
		p.logPhase("Translate")
		tr, raw, err := agent.Translate(ctx, p.LLM, question)
		if err != nil {
			return result, err
		}
		if err := p.chargeLLM("translate", question, raw); err != nil {
			return result, err
		}
		if tr.QuestionEN != "" {
			questionEN = tr.QuestionEN
		}
	}
	result.QuestionEN = questionEN

	p.logPhase("Retrieve")
	candidate, err := p.Builder.Build(ctx, questionEN)
	if err != nil {
		return result, err
	}

	p.logPhase("Plan")
	plan, rawPlan, err := agent.Plan(ctx, p.LLM, questionEN, candidate)
	if err != nil {
		return result, err
	}
	if err := p.chargeLLM("plan", questionEN, rawPlan); err != nil {
		return result, err
	}

	p.logPhase("Engineer")
	draft, rawDraft, err := agent.Engineer(ctx, p.LLM, questionEN, plan, candidate)
	if err != nil {
		return result, err
	}
	if err := p.chargeLLM("engineer", questionEN, rawDraft); err != nil {
		return result, err
	}

	riskInfo := risk.Classify(question)
	result.Risk = riskInfo
	result.Mode = "agent"

	if p.Config.ExpertTriggerMode == "score" && riskInfo.Risk >= p.Config.ExpertScoreThresh {
		p.logPhase("Expert gate")
		reviewed, rawReview, err := agent.Review(ctx, p.LLM, questionEN, draft, candidate)
		if err != nil {
			return result, err
		}
		if err := p.chargeLLM("expert", questionEN, rawReview); err != nil {
			return result, err
		}
		draft = reviewed
		result.Mode = "expert"
	}

	sql, rowCount, columns, rows, appliedTags, issues, execErr := p.postprocessAlignPolicyExecute(ctx, questionEN, draft.FinalSQL)
	result.SQL = sql
	result.AppliedTags = appliedTags
	result.Issues = issues

	if execErr != nil {
		// Policy, scope, and input failures are terminal: repair only
		// exists for execution errors the templates can fix.
		if apperr.Is(execErr, apperr.KindPolicyViolation) || apperr.Is(execErr, apperr.KindTableScope) || apperr.Is(execErr, apperr.KindInput) {
			return result, execErr
		}
		retried, retryErr := p.retryRepair(ctx, questionEN, draft, sql, execErr)
		if retryErr != nil {
			return result, retryErr
		}
		result.SQL = retried.SQL
		result.AppliedTags = retried.AppliedTags
		result.Columns = retried.Columns
		result.Rows = retried.Rows
		result.RowCount = retried.RowCount
		result.Warnings = append(result.Warnings, retried.Warnings...)
		result.QID = p.store(result)
		return result, nil
	}

	result.Columns = columns
	result.Rows = rows
	result.RowCount = rowCount
	result.QID = p.store(result)
	return result, nil
}

// postprocessAlignPolicyExecute runs the rewrite/align/policy/execute leg
// shared by the first attempt and every repair retry.
func (p *Pipeline) postprocessAlignPolicyExecute(ctx context.Context, question, draftSQL string) (sql string, rowCount int, columns []string, rows []map[string]any, appliedTags []string, issues []sqlalign.Issue, err error) {
	p.logPhase("Postprocess")
	pp := postprocess.Run(question, draftSQL, postprocess.Options{RowCap: p.Config.RowCap, SampleRows: 10})

	p.logPhase("Align")
	aligned, detectedIssues := sqlalign.Align(question, pp.SQL)

	p.logPhase("Policy")
	if _, policyErr := policy.Precheck(aligned, question, p.Config.MaxDBJoins, p.Config.AllowedTables); policyErr != nil {
		return aligned, 0, nil, nil, pp.AppliedTags, detectedIssues, policyErr
	}

	p.logPhase("Execute")
	qr, execErr := p.DB.ExecuteQuery(ctx, aligned)
	if execErr != nil {
		return aligned, 0, nil, nil, pp.AppliedTags, detectedIssues, apperr.Wrap(apperr.KindDriverError, "query execution failed", execErr)
	}
	return aligned, qr.RowCount, qr.Columns, qr.Rows, pp.AppliedTags, detectedIssues, nil
}

type retriedLeg struct {
	SQL         string
	AppliedTags []string
	Columns     []string
	Rows        []map[string]any
	RowCount    int
	Warnings    []string
}

// retryRepair applies the deterministic error-template table first, then
// falls back to the LLM repair agent, capped at max_retry_attempts total
// attempts.
func (p *Pipeline) retryRepair(ctx context.Context, question string, draft agent.SQLDraft, failedSQL string, lastErr error) (retriedLeg, error) {
	errMsg := lastErr.Error()
	sql := failedSQL

	attempts := 0
	for attempt := 0; attempt < p.Config.MaxRetries; attempt++ {
		attempts++
		p.logPhase("Error-template repair")
		repaired := postprocess.RunWithErrorRepair(question, sql, errMsg, postprocess.Options{RowCap: p.Config.RowCap, SampleRows: 10})

		aligned, _ := sqlalign.Align(question, repaired.SQL)
		prevSQL := sql
		if _, policyErr := policy.Precheck(aligned, question, p.Config.MaxDBJoins, p.Config.AllowedTables); policyErr == nil {
			qr, execErr := p.DB.ExecuteQuery(ctx, aligned)
			if execErr == nil {
				return retriedLeg{SQL: aligned, AppliedTags: repaired.AppliedTags, Columns: qr.Columns, Rows: qr.Rows, RowCount: qr.RowCount}, nil
			}
			errMsg = execErr.Error()
			sql = aligned
		}

		if aligned == prevSQL {
			break
		}
	}

	if attempts >= p.Config.MaxRetries {
		return retriedLeg{}, apperr.Wrap(apperr.KindDriverError, "query failed after max_retry_attempts repair attempts", lastErr)
	}

	p.logPhase("LLM repair")
	candidate, buildErr := p.Builder.Build(ctx, question)
	if buildErr != nil {
		return retriedLeg{}, apperr.Wrap(apperr.KindDriverError, "query failed and repair context unavailable", lastErr)
	}
	repaired, raw, err := agent.Repair(ctx, p.LLM, question, sql, errMsg, candidate)
	if err != nil {
		return retriedLeg{}, err
	}
	if err := p.chargeLLM("repair", question, raw); err != nil {
		return retriedLeg{}, err
	}

	aligned, _ := sqlalign.Align(question, repaired.FinalSQL)
	if _, policyErr := policy.Precheck(aligned, question, p.Config.MaxDBJoins, p.Config.AllowedTables); policyErr != nil {
		return retriedLeg{}, policyErr
	}
	qr, execErr := p.DB.ExecuteQuery(ctx, aligned)
	if execErr != nil {
		return retriedLeg{}, apperr.Wrap(apperr.KindDriverError, "query execution failed after LLM repair", execErr)
	}
	return retriedLeg{SQL: aligned, Columns: qr.Columns, Rows: qr.Rows, RowCount: qr.RowCount, Warnings: []string{"recovered via LLM repair agent after " + errMsg}}, nil
}

func (p *Pipeline) store(result Result) string {
	if p.Records == nil {
		return ""
	}
	return p.Records.Put(QueryRecord{
		Question: result.Question,
		Final:    result.SQL,
		Risk:     result.Risk,
		Mode:     result.Mode,
	})
}

func (p *Pipeline) audit(question string, result Result, err error, duration time.Duration) {
	if p.Audit == nil {
		return
	}
	status := audit.StatusSuccess
	errMsg := ""
	if err != nil {
		status = audit.StatusError
		errMsg = err.Error()
		if apperr.Is(err, apperr.KindDatasetMismatch) {
			status = audit.StatusWarning
		}
	}
	p.Audit.Append(audit.Event{
		Type:         "audit",
		Question:     question,
		SQL:          result.SQL,
		Status:       status,
		RowsReturned: result.RowCount,
		RowCap:       p.Config.RowCap,
		DurationMS:   duration.Milliseconds(),
		Error:        errMsg,
	})
}
