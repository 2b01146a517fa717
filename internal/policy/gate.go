// Package policy implements the static SQL gate: a fixed set of
// read-only/shape/scope checks that run before any query reaches the
// database.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"reactsql-mimic/internal/apperr"
)

var (
	writeKeywordsRE = regexp.MustCompile(`(?i)\b(delete|update|insert|merge|drop|alter|truncate)\b`)
	tableRefRE      = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z0-9_.$#"]+)`)
	cteRefRE        = regexp.MustCompile(`(?i)(?:with|,)\s*([A-Za-z0-9_]+)\s+as\s*\(`)
	aggFnRE         = regexp.MustCompile(`(?i)\b(count|avg|sum|min|max)\s*\(`)
	selectOrWithRE  = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
	withRE          = regexp.MustCompile(`(?i)^\s*with\b`)
	selectAnywhereRE = regexp.MustCompile(`(?i)\bselect\b`)
	whereAnywhereRE  = regexp.MustCompile(`(?i)\bwhere\b`)
	joinRE           = regexp.MustCompile(`(?i)\bjoin\b`)
)

var whereOptionalQuestionHints = []string{
	"count", "how many", "number of", "distribution", "trend", "compare", "comparison",
	"average", "mean", "median", "ratio", "rate", "top", "most", "least", "summary", "aggregate",
	"분포", "추이", "비교", "평균", "중앙", "비율", "건수", "통계", "요약", "상위", "하위", "몇 명", "몇건", "트렌드", "가장",
}

// Check is one named pass/fail policy assertion; the gate stops at the
// first failing check, so a result lists the checks that passed before it
// followed by the one that failed.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// Result is the full precheck outcome; Passed is true only if every Check
// in Checks passed.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
}

func extractTableNames(sql string) []string {
	var tables []string
	for _, m := range tableRefRE.FindAllStringSubmatch(sql, -1) {
		name := strings.TrimSpace(m[1])
		name = strings.Trim(name, `"`)
		name = strings.TrimSpace(name)
		name = strings.NewReplacer("(", "", ")", "", ",", "").Replace(name)
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if name != "" {
			tables = append(tables, name)
		}
	}
	return tables
}

func canSkipWhere(question, sql string) bool {
	if question == "" {
		return false
	}
	q := strings.ToLower(question)
	hinted := false
	for _, hint := range whereOptionalQuestionHints {
		if strings.Contains(q, hint) {
			hinted = true
			break
		}
	}
	if !hinted {
		return false
	}
	return aggFnRE.MatchString(sql) || regexp.MustCompile(`(?i)\bgroup\s+by\b`).MatchString(sql)
}

// Precheck runs every static policy check against sql in a fixed order,
// stopping on the first violation: a violated check returns immediately
// via apperr, all prior passing
// checks are still reported in Result.Checks via the returned partial
// result when err == nil is false (callers needing the full check list
// for audit should inspect the returned Result even on error).
func Precheck(sql, question string, maxJoins int, allowedTables []string) (Result, error) {
	text := strings.TrimSpace(sql)
	var checks []Check
	if text == "" {
		return Result{Checks: checks}, apperr.New(apperr.KindInput, "Empty SQL")
	}

	if writeKeywordsRE.MatchString(text) {
		checks = append(checks, Check{"Read-only", false, "Write keyword detected"})
		return Result{Checks: checks}, apperr.New(apperr.KindPolicyViolation, "Write operations are not allowed")
	}
	checks = append(checks, Check{"Read-only", true, "No write keyword detected"})

	statementOK := selectOrWithRE.MatchString(text)
	checks = append(checks, Check{"Statement type", statementOK, "SELECT/CTE only"})
	if !statementOK {
		return Result{Checks: checks}, apperr.New(apperr.KindPolicyViolation, "Only SELECT queries are allowed")
	}
	if withRE.MatchString(text) {
		cteHasSelect := selectAnywhereRE.MatchString(text)
		checks = append(checks, Check{"CTE", cteHasSelect, "WITH clause includes SELECT"})
		if !cteHasSelect {
			return Result{Checks: checks}, apperr.New(apperr.KindPolicyViolation, "CTE query must include SELECT")
		}
	}

	joinCount := len(joinRE.FindAllString(text, -1))
	joinOK := joinCount <= maxJoins
	checks = append(checks, Check{"Join limit", joinOK, fmt.Sprintf("%d/%d joins", joinCount, maxJoins)})
	if !joinOK {
		return Result{Checks: checks}, apperr.New(apperr.KindPolicyViolation, "Join limit exceeded")
	}

	hasWhere := whereAnywhereRE.MatchString(text)
	whereOptional := canSkipWhere(question, text)
	whereOK := hasWhere || whereOptional
	whereMessage := "Aggregate question: WHERE optional"
	if hasWhere {
		whereMessage = "WHERE clause present"
	}
	checks = append(checks, Check{"WHERE rule", whereOK, whereMessage})
	if !hasWhere && !whereOptional {
		return Result{Checks: checks}, apperr.New(apperr.KindPolicyViolation, "WHERE clause required")
	}

	allowed := map[string]bool{}
	for _, t := range allowedTables {
		if t != "" {
			allowed[strings.ToLower(t)] = true
		}
	}
	if len(allowed) > 0 {
		cteNames := map[string]bool{}
		for _, m := range cteRefRE.FindAllStringSubmatch(text, -1) {
			cteNames[strings.ToLower(m[1])] = true
		}
		var found []string
		for _, t := range extractTableNames(text) {
			if !cteNames[strings.ToLower(t)] {
				found = append(found, t)
			}
		}
		disallowedSet := map[string]bool{}
		var disallowed []string
		for _, t := range found {
			if !allowed[strings.ToLower(t)] {
				if !disallowedSet[strings.ToLower(t)] {
					disallowedSet[strings.ToLower(t)] = true
					disallowed = append(disallowed, t)
				}
			}
		}
		if len(disallowed) == 0 {
			checks = append(checks, Check{"Table scope", true, fmt.Sprintf("%d table references allowed", len(found))})
		} else {
			sort.Strings(disallowed)
			checks = append(checks, Check{"Table scope", false, "Disallowed: " + strings.Join(disallowed, ", ")})
			return Result{Checks: checks}, apperr.New(apperr.KindTableScope, fmt.Sprintf("Table not allowed: %s", strings.Join(disallowed, ", ")))
		}
	} else {
		checks = append(checks, Check{"Table scope", true, "No table scope restriction"})
	}

	return Result{Passed: true, Checks: checks}, nil
}
