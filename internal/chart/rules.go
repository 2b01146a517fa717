package chart

import (
	"strings"
)

var groupWhitelist = []string{
	"gender", "admission_type", "insurance", "race", "marital_status", "careunit",
	"first_careunit", "last_careunit", "language", "ethnicity",
}

const maxGroupCardinality = 30

func isWhitelistedGroup(name string) bool {
	lower := strings.ToLower(name)
	for _, w := range groupWhitelist {
		if lower == w {
			return true
		}
	}
	return false
}

func isIdentifierName(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "subject_id", "patient_id", "hadm_id", "stay_id", "row_id":
		return true
	}
	return false
}

// icuContext reports whether df carries the ICU unit-of-analysis columns
// (STAY_ID + INTIME) or the question text names an ICU concept.
func icuContext(df *DataFrame, question string) bool {
	if df.HasColumn("stay_id") && df.HasColumn("intime") {
		return true
	}
	q := strings.ToLower(question)
	return strings.Contains(q, "icu") || strings.Contains(q, "중환자")
}

// trajectoryGroupColumn returns the per-entity id a line chart should
// segment by (STAY_ID preferred, then HADM_ID), or "" if neither exists.
func trajectoryGroupColumn(df *DataFrame) string {
	if df.HasColumn("stay_id") {
		return "stay_id"
	}
	if df.HasColumn("hadm_id") {
		return "hadm_id"
	}
	return ""
}

// elapsedTimeColumn derives the elapsed-time axis: prefer a precomputed
// elapsed_icu_days/elapsed_admit_days column, otherwise tag that one
// needs to be derived as charttime-intime/admittime, otherwise fall
// back to the first time column present.
func elapsedTimeColumn(df *DataFrame, question string) (col string, needsExpr bool) {
	if icuContext(df, question) {
		if df.HasColumn("elapsed_icu_days") {
			return "elapsed_icu_days", false
		}
		if df.HasColumn("charttime") && df.HasColumn("intime") {
			return "elapsed_icu_days", true
		}
	}
	if df.HasColumn("elapsed_admit_days") {
		return "elapsed_admit_days", false
	}
	if df.HasColumn("charttime") && df.HasColumn("admittime") {
		return "elapsed_admit_days", true
	}
	for _, c := range df.Columns {
		if df.Kind(c) == KindTime {
			return c, false
		}
	}
	return "", false
}

func groupCandidates(df *DataFrame) []string {
	if icuContext(df, "") {
		var out []string
		if df.HasColumn("stay_id") {
			out = append(out, "stay_id")
		}
		if df.HasColumn("hadm_id") {
			out = append(out, "hadm_id")
		}
		if len(out) > 0 {
			return out
		}
	}
	var out []string
	for _, c := range df.Columns {
		if isWhitelistedGroup(c) && df.Cardinality(c) > 0 && df.Cardinality(c) <= maxGroupCardinality {
			out = append(out, c)
		}
	}
	return out
}

func firstNumeric(df *DataFrame, prefer string) string {
	if prefer != "" && df.HasColumn(prefer) && df.Kind(prefer) == KindNumeric {
		return prefer
	}
	nums := df.NumericColumns()
	if len(nums) == 0 {
		return ""
	}
	return nums[0]
}

func windowQuestion(question string) bool {
	q := strings.ToLower(question)
	return strings.Contains(q, "days after") || strings.Contains(q, "일 후") || strings.Contains(q, "후 ") ||
		strings.Contains(q, "days later")
}

func admissionAnchored(question string) bool {
	q := strings.ToLower(question)
	return strings.Contains(q, "admission") || strings.Contains(q, "입원")
}

func rateOrAmountQuestion(question string) bool {
	q := strings.ToLower(question)
	return strings.Contains(q, "rate") || strings.Contains(q, "amount") || strings.Contains(q, "비율") || strings.Contains(q, "양")
}

// candidateSpec is an intermediate plan before the fatal-validation pass.
type candidateSpec struct {
	spec   Spec
	reason string
}

func candidatesFor(intent Intent, df *DataFrame, question string) []candidateSpec {
	var out []candidateSpec
	y := firstNumeric(df, intent.PrimaryOutcome)

	switch intent.AnalysisIntent {
	case IntentTrend:
		timeCol, needsExpr := elapsedTimeColumn(df, question)
		if timeCol == "" {
			break
		}
		extras := map[string]any{}
		if needsExpr {
			extras["needs_expression"] = "charttime - intime"
		}
		groupCol := intent.GroupVar
		if groupCol == "" {
			if g := trajectoryGroupColumn(df); g != "" {
				groupCol = g
			}
		}
		chartType := ChartLine
		if groupCol == "" {
			chartType = ChartBar
		}
		out = append(out, candidateSpec{
			spec:   Spec{ChartType: chartType, X: timeCol, Y: y, Group: groupCol, Agg: intent.Agg, Extras: extras},
			reason: "trend over " + timeCol,
		})
		out = append(out, candidateSpec{
			spec:   Spec{ChartType: ChartBox, X: timeCol, Y: y, Extras: extras},
			reason: "distribution over time as a fallback trend view",
		})

	case IntentDistribution:
		group := intent.GroupVar
		if group == "" {
			cands := groupCandidates(df)
			if len(cands) > 0 {
				group = cands[0]
			}
		}
		if group != "" && !isIdentifierName(group) {
			out = append(out, candidateSpec{
				spec:   Spec{ChartType: ChartBar, X: group, Y: y, Agg: "count"},
				reason: "distribution by " + group,
			})
		}
		if y != "" {
			out = append(out, candidateSpec{spec: Spec{ChartType: ChartHist, X: y}, reason: "histogram of " + y})
		}

	case IntentComparison:
		group := intent.GroupVar
		if group == "" {
			cands := groupCandidates(df)
			if len(cands) > 0 {
				group = cands[0]
			}
		}
		if group != "" && !isIdentifierName(group) {
			out = append(out, candidateSpec{
				spec:   Spec{ChartType: ChartBox, X: group, Y: y},
				reason: "comparison across " + group,
			})
			out = append(out, candidateSpec{
				spec:   Spec{ChartType: ChartBarStacked, X: group, Y: y, Agg: intent.Agg},
				reason: "grouped comparison across " + group,
			})
		}

	case IntentProportion:
		group := intent.GroupVar
		if group == "" {
			cands := groupCandidates(df)
			if len(cands) > 0 {
				group = cands[0]
			}
		}
		if group != "" {
			out = append(out, candidateSpec{spec: Spec{ChartType: ChartPie, X: group, Y: y, Agg: "count"}, reason: "proportion by " + group})
		}

	case IntentCorrelation:
		nums := df.NumericColumns()
		if len(nums) >= 2 && !isIdentifierName(nums[0]) && !isIdentifierName(nums[1]) {
			out = append(out, candidateSpec{spec: Spec{ChartType: ChartScatter, X: nums[0], Y: nums[1]}, reason: "correlation between " + nums[0] + " and " + nums[1]})
		}

	default: // overview/summary
		if y != "" {
			out = append(out, candidateSpec{spec: Spec{ChartType: ChartHist, X: y}, reason: "overview distribution of " + y})
		}
	}

	return out
}

// validate applies the fatal clinical-semantics checks;
// a candidate that fails any applicable check is dropped entirely.
func validate(c candidateSpec, df *DataFrame, question string) bool {
	// Rule 1: ICU trend must use STAY_ID/HADM_ID as group, never
	// SUBJECT_ID/PATIENT_ID, and must not use calendar time as x.
	if icuContext(df, question) && (c.spec.ChartType == ChartLine || c.spec.ChartType == ChartLineScatter) {
		if c.spec.Group != "" {
			lower := strings.ToLower(c.spec.Group)
			if lower == "subject_id" || lower == "patient_id" {
				return false
			}
		}
		if df.Kind(c.spec.X) == KindTime {
			// calendar time forbidden for ICU-scoped trend charts unless
			// it is actually the derived elapsed column.
			if !strings.HasPrefix(strings.ToLower(c.spec.X), "elapsed_") {
				return false
			}
		}
	}

	// Rule 2: trajectory line charts require STAY_ID/HADM_ID.
	if c.spec.ChartType == ChartLine && c.spec.Group != "" {
		if !isWhitelistedGroup(c.spec.Group) && !(strings.EqualFold(c.spec.Group, "stay_id") || strings.EqualFold(c.spec.Group, "hadm_id")) {
			return false
		}
	}
	if c.spec.ChartType == ChartLine && trajectoryGroupColumn(df) == "" {
		return false
	}

	// Rule 3: distribution/comparison forbid identifier group_var.
	if c.spec.ChartType == ChartBar || c.spec.ChartType == ChartBox || c.spec.ChartType == ChartBarStacked {
		if c.spec.X != "" && isIdentifierName(c.spec.X) {
			return false
		}
	}

	// Rule 4: correlation excludes identifier columns on either axis.
	if c.spec.ChartType == ChartScatter || c.spec.ChartType == ChartDynamicScatter {
		if isIdentifierName(c.spec.X) || isIdentifierName(c.spec.Y) {
			return false
		}
	}

	// Rule 5: "N days after" needs an elapsed-time derived column.
	if windowQuestion(question) {
		timeCol, _ := elapsedTimeColumn(df, question)
		if timeCol == "" {
			return false
		}
		if c.spec.X != "" && df.Kind(c.spec.X) == KindTime && !strings.HasPrefix(strings.ToLower(c.spec.X), "elapsed_") {
			return false
		}
	}

	// Rule 6: admission-anchored trend requires ADMITTIME present.
	if admissionAnchored(question) && (c.spec.ChartType == ChartLine || c.spec.ChartType == ChartBar) {
		if !df.HasColumn("admittime") && !df.HasColumn("elapsed_admit_days") {
			return false
		}
	}

	// Rule 7: rate/amount trend requires time binning (elapsed or calendar).
	if rateOrAmountQuestion(question) && c.spec.ChartType != ChartScatter && c.spec.ChartType != ChartHist && c.spec.ChartType != ChartPie {
		if c.spec.X == "" || (df.Kind(c.spec.X) != KindTime && !strings.HasPrefix(strings.ToLower(c.spec.X), "elapsed_")) {
			return false
		}
	}

	return true
}

// PlanAnalyses returns every chart plan that survives the clinical rule
// set for (intent, df), dropping every candidate a fatal rule rejects.
func PlanAnalyses(intent Intent, df *DataFrame, question string) []Plan {
	if df == nil || len(df.Columns) == 0 {
		return nil
	}
	var plans []Plan
	for _, c := range candidatesFor(intent, df, question) {
		if !validate(c, df, question) {
			continue
		}
		plans = append(plans, Plan{Spec: c.spec, Reason: c.reason})
	}
	return plans
}
