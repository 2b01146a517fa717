// Package sqlalign implements the intent-alignment checker: after the SQL
// post-processor runs, scan the final SQL for signs that it does not
// reflect the question's intent, and accept a rewrite only if it strictly
// reduces the set of detected mismatches.
package sqlalign

import (
	"regexp"
	"strings"
)

// Issue is one detected mismatch between question and SQL.
type Issue string

const (
	IssueRatioMissing      Issue = "ratio_missing"
	IssueQuartileMissing   Issue = "quartile_missing"
	IssueStratifyMissing   Issue = "stratify_missing"
	IssueYearlyMissing     Issue = "yearly_missing"
	IssueMonthlyMissing    Issue = "monthly_missing"
	IssueWindowMissing     Issue = "window_missing"
	IssueAgeConceptWrong   Issue = "age_concept_wrong"
	IssueAgeProjectMissing Issue = "age_projection_missing"
)

var (
	ratioQuestionRE  = regexp.MustCompile(`(?i)\b(ratio|percentage|percent|비율|비중|퍼센트)\b`)
	ratioSQLRE       = regexp.MustCompile(`(?i)(\*\s*100|\bavg\s*\(|\brate\b|\bratio\b)`)
	quartileQuestionRE = regexp.MustCompile(`(?i)\b(quartile|분위수|사분위)\b`)
	quartileSQLRE      = regexp.MustCompile(`(?i)\bntile\s*\(\s*4\s*\)|\bq[1-4]\b`)
	stratifyQuestionRE = regexp.MustCompile(`(?i)\b(by gender|by age|성별로|연도별|월별|그룹별|by group|stratif)`)
	groupOrPartitionRE = regexp.MustCompile(`(?i)\bgroup\s+by\b|\bpartition\s+by\b`)
	yearlyQuestionRE   = regexp.MustCompile(`(?i)\b(by year|yearly|per year|연도별|연간)\b`)
	yearExprRE         = regexp.MustCompile(`(?i)extract\s*\(\s*year\s+from|to_char\s*\([^)]*,\s*'yyyy'`)
	monthlyQuestionRE  = regexp.MustCompile(`(?i)\b(by month|monthly|per month|월별|월간)\b`)
	monthExprRE        = regexp.MustCompile(`(?i)extract\s*\(\s*month\s+from|to_char\s*\([^)]*,\s*'(yyyy-mm|mm|yyyymm)'`)
	windowQuestionRE   = regexp.MustCompile(`(?i)within\s+\d+\s*day|후\s*\d+\s*일|\d+\s*일\s*이내|\d+\s*-?day`)
	windowSQLRE        = regexp.MustCompile(`(?i)interval\s+'\d+'|add_months\s*\(`)
	ageConceptQuestionRE = regexp.MustCompile(`(?i)\bage\b|나이|연령`)
	anchorYearGroupRE    = regexp.MustCompile(`(?i)\banchor_year_group\b`)
	anchorAgeRE          = regexp.MustCompile(`(?i)\banchor_age\b`)
	ageGroupMostMenRE    = regexp.MustCompile(`(?i)age group with (the )?most men|남성이 가장 많은 연령`)
	ageProjectionRE      = regexp.MustCompile(`(?i)\bage\b|\banchor_age\b`)
	selectClauseRE       = regexp.MustCompile(`(?is)^\s*select\s+(.*?)\s+from\b`)
)

func selectList(sql string) string {
	m := selectClauseRE.FindStringSubmatch(sql)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Detect returns every issue sql exhibits against question. Order is
// insignificant; callers compare issue sets by length/subset, not order.
func Detect(question, sql string) []Issue {
	var issues []Issue

	if ratioQuestionRE.MatchString(question) && !ratioSQLRE.MatchString(sql) {
		issues = append(issues, IssueRatioMissing)
	}
	if quartileQuestionRE.MatchString(question) && !quartileSQLRE.MatchString(sql) {
		issues = append(issues, IssueQuartileMissing)
	}
	if stratifyQuestionRE.MatchString(question) && !groupOrPartitionRE.MatchString(sql) {
		issues = append(issues, IssueStratifyMissing)
	}
	if yearlyQuestionRE.MatchString(question) && !yearExprRE.MatchString(sql) {
		issues = append(issues, IssueYearlyMissing)
	}
	if monthlyQuestionRE.MatchString(question) && !monthExprRE.MatchString(sql) {
		issues = append(issues, IssueMonthlyMissing)
	}
	if windowQuestionRE.MatchString(question) && !windowSQLRE.MatchString(sql) {
		issues = append(issues, IssueWindowMissing)
	}
	if ageConceptQuestionRE.MatchString(question) && anchorYearGroupRE.MatchString(sql) && !anchorAgeRE.MatchString(sql) {
		issues = append(issues, IssueAgeConceptWrong)
	}
	if ageGroupMostMenRE.MatchString(question) && !ageProjectionRE.MatchString(selectList(sql)) {
		issues = append(issues, IssueAgeProjectMissing)
	}

	return issues
}

// issueSet builds a set for subset comparison.
func issueSet(issues []Issue) map[Issue]bool {
	m := make(map[Issue]bool, len(issues))
	for _, i := range issues {
		m[i] = true
	}
	return m
}

// isSubset reports whether every issue in a is also in b.
func isSubset(a, b map[Issue]bool) bool {
	for i := range a {
		if !b[i] {
			return false
		}
	}
	return true
}

// rewrite is one candidate fix for a specific issue; Applies reports
// whether it fires for the given question/sql, and Rewrite returns the
// adjusted query.
type rewrite struct {
	issue   Issue
	applies func(question, sql string) bool
	rewrite func(question, sql string) string
}

func anchorYearGroupToAge(sql string) string {
	return anchorYearGroupRE.ReplaceAllString(sql, "ANCHOR_AGE")
}

var rewrites = []rewrite{
	{
		issue: IssueAgeConceptWrong,
		applies: func(q, sql string) bool {
			return ageConceptQuestionRE.MatchString(q) && anchorYearGroupRE.MatchString(sql)
		},
		rewrite: func(q, sql string) string { return anchorYearGroupToAge(sql) },
	},
	{
		issue: IssueYearlyMissing,
		applies: func(q, sql string) bool {
			return yearlyQuestionRE.MatchString(q) && groupOrPartitionRE.MatchString(sql) && !yearExprRE.MatchString(sql)
		},
		rewrite: func(q, sql string) string {
			// Best-effort: nothing safe to inject without knowing the date
			// column; leave sql untouched so Detect still reports the issue
			// and the caller can decide to surface it as a DatasetMismatch.
			return sql
		},
	},
}

// Align runs every applicable rewrite against sql and accepts it only if
// it strictly reduces the detected issue set without introducing any
// issue absent before. It returns the (possibly unchanged) SQL and the set of
// issues still outstanding after acceptance/rejection.
func Align(question, sql string) (string, []Issue) {
	before := Detect(question, sql)
	beforeSet := issueSet(before)
	if len(before) == 0 {
		return sql, before
	}

	current := sql
	currentIssues := before
	currentSet := beforeSet

	for _, rw := range rewrites {
		if !rw.applies(question, current) {
			continue
		}
		candidate := rw.rewrite(question, current)
		if candidate == current {
			continue
		}
		after := Detect(question, candidate)
		afterSet := issueSet(after)
		if len(after) < len(currentIssues) && isSubset(afterSet, currentSet) {
			current = candidate
			currentIssues = after
			currentSet = afterSet
		}
	}

	return current, currentIssues
}

// HasIdentifierGroupVar reports whether col, case-insensitively, is one of
// the identifier columns SUBJECT_ID, PATIENT_ID, HADM_ID, STAY_ID or ROW_ID.
func HasIdentifierGroupVar(col string) bool {
	col = strings.ToUpper(strings.TrimSpace(col))
	switch col {
	case "SUBJECT_ID", "PATIENT_ID", "HADM_ID", "STAY_ID", "ROW_ID":
		return true
	}
	return false
}
