package chart

// Response is the library-level equivalent of the /visualize HTTP
// surface's VisualizationResponse: sql/table preview plus the planner's
// output and failure bookkeeping. The HTTP handler itself is out of
// scope; this is what it would marshal.
type Response struct {
	SQL           string          `json:"sql"`
	TablePreview  []map[string]any `json:"table_preview"`
	Analyses      []Plan           `json:"analyses"`
	Insight       string           `json:"insight"`
	FallbackUsed  bool             `json:"fallback_used"`
	FallbackStage string           `json:"fallback_stage,omitempty"`
	FailureReasons []string        `json:"failure_reasons,omitempty"`
	AttemptCount  int              `json:"attempt_count"`
}

const previewRows = 20

func preview(df *DataFrame) []map[string]any {
	n := previewRows
	if n > len(df.Rows) {
		n = len(df.Rows)
	}
	return df.Rows[:n]
}

// Visualize is the full visualization entry point: infer intent, plan
// analyses, and on a dry run fall back to a relaxed plan (group_var
// cleared) before finally emitting a statistical fallback insight.
// Failures land in FailureReasons; Visualize itself never errors.
func Visualize(question, sql string, df *DataFrame) Response {
	resp := Response{SQL: sql, TablePreview: preview(df)}

	if df == nil || len(df.Rows) == 0 {
		resp.FallbackUsed = true
		resp.FallbackStage = "empty_result"
		resp.FailureReasons = append(resp.FailureReasons, "normal: empty_result")
		resp.Insight = "Query returned no rows."
		return resp
	}

	intent := ExtractIntent(question, df)
	resp.AttemptCount = 1
	plans := PlanAnalyses(intent, df, question)
	if len(plans) > 0 {
		resp.Analyses = plans
		resp.Insight = narrateFirst(plans)
		return resp
	}
	resp.FailureReasons = append(resp.FailureReasons, "no_renderable_chart: "+intent.AnalysisIntent)

	relaxed := intent
	relaxed.GroupVar = ""
	resp.AttemptCount++
	plans = PlanAnalyses(relaxed, df, question)
	if len(plans) > 0 {
		resp.Analyses = plans
		resp.Insight = narrateFirst(plans)
		return resp
	}
	resp.FailureReasons = append(resp.FailureReasons, "no_renderable_chart: relaxed group_var")

	resp.FallbackUsed = true
	resp.FallbackStage = "rule_engine"
	fallback := BuildFallback(df, "normal: no_renderable_chart")
	resp.Insight = fallback.NarrativeSummary()
	return resp
}

func narrateFirst(plans []Plan) string {
	if len(plans) == 0 {
		return ""
	}
	return plans[0].Reason
}
