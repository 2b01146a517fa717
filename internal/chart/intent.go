package chart

import "strings"

// ExtractIntent infers an Intent from the question text and the result
// schema: a cheap keyword classifier over {trend, distribution,
// comparison, proportion, correlation, overview}, with
// primary_outcome/time_var/group_var filled from the available
// DataFrame columns.
func ExtractIntent(question string, df *DataFrame) Intent {
	q := strings.ToLower(question)

	classify := func() string {
		switch {
		case containsAny(q, "trend", "over time", "추이", "변화", "추세"):
			return IntentTrend
		case containsAny(q, "correlation", "relationship between", "상관관계"):
			return IntentCorrelation
		case containsAny(q, "proportion", "percentage", "ratio", "비율", "비중"):
			return IntentProportion
		case containsAny(q, "compare", "comparison", "versus", " vs ", "비교"):
			return IntentComparison
		case containsAny(q, "distribution", "breakdown", "by gender", "by group", "분포"):
			return IntentDistribution
		default:
			return IntentOverview
		}
	}

	intent := Intent{AnalysisIntent: classify()}

	if t, _ := elapsedTimeColumn(df, question); t != "" {
		intent.TimeVar = t
	}
	nums := df.NumericColumns()
	if len(nums) > 0 {
		intent.PrimaryOutcome = nums[0]
	}
	if cands := groupCandidates(df); len(cands) > 0 {
		intent.GroupVar = cands[0]
	}
	intent.Agg = "count"
	if intent.PrimaryOutcome != "" {
		intent.Agg = "avg"
	}

	return intent
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
