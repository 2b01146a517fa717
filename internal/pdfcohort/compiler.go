package pdfcohort

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Step is one filtering step of a CohortIntent: a named clinical signal
// applied as either an inclusion or exclusion predicate over an optional
// time window.
type Step struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"` // age|gender|diagnosis|lab|icu_stay|vital|derived
	Params      map[string]any `json:"params"`
	Window      string         `json:"window,omitempty"`
	IsExclusion bool           `json:"is_exclusion"`
	IsMandatory bool           `json:"is_mandatory"`
}

// CohortIntent is the LLM-produced, schema-agnostic filter plan that
// CompileOracleSQL turns into a CTE cascade.
type CohortIntent struct {
	Steps []Step `json:"steps"`
}

// CompiledSQL is the three SQL statements a compiled intent produces: the
// patient-level result, its count, and a per-step funnel count used for
// the step_counts debug view.
type CompiledSQL struct {
	CohortSQL     string
	CountSQL      string
	DebugCountSQL string
	Warnings      []string
}

var hospitalLevelTypes = map[string]bool{
	"lab": true, "diagnosis": true, "prescription": true,
	"microbiology": true, "admissions": true, "procedures": true,
}

func bestJoinKey(stepType string) string {
	if hospitalLevelTypes[stepType] {
		return "hadm_id"
	}
	return "stay_id"
}

var identifierKeys = []string{"subject_id", "hadm_id", "stay_id"}

var selectListRE = regexp.MustCompile(`(?is)select\s+(.*?)\s+from\b`)

func selectKeys(sql string) map[string]bool {
	m := selectListRE.FindStringSubmatch(sql)
	selectPart := strings.ToLower(sql)
	if m != nil {
		selectPart = strings.ToLower(m[1])
	}
	if strings.Contains(selectPart, "*") {
		return map[string]bool{"subject_id": true, "hadm_id": true, "stay_id": true}
	}
	out := map[string]bool{}
	for _, key := range identifierKeys {
		if regexp.MustCompile(`\b` + key + `\b`).MatchString(selectPart) {
			out[key] = true
		}
	}
	return out
}

// resolveJoinKey picks preferred if the step's signal SQL projects it,
// otherwise falls back to the first available identifier in a fixed
// preference order.
func resolveJoinKey(preferred, signalSQL string) (string, bool) {
	available := selectKeys(signalSQL)
	if len(available) == 0 {
		return "", false
	}
	if available[preferred] {
		return preferred, true
	}
	for _, fallback := range []string{"hadm_id", "stay_id", "subject_id"} {
		if available[fallback] {
			return fallback, true
		}
	}
	for k := range available {
		return k, true
	}
	return "", false
}

var stepSlugRE = regexp.MustCompile(`[^a-z0-9_]+`)
var stepSlugCollapseRE = regexp.MustCompile(`_+`)

func sanitizeStepSlug(value string) string {
	slug := stepSlugRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "_")
	slug = stepSlugCollapseRE.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "unknown"
	}
	return slug
}

func paramString(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return def
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func paramFloat(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

func paramCodes(params map[string]any) []string {
	raw, ok := params["codes"]
	if !ok {
		return nil
	}
	var candidates []string
	switch t := raw.(type) {
	case []any:
		for _, v := range t {
			candidates = append(candidates, fmt.Sprintf("%v", v))
		}
	case string:
		if strings.Contains(t, ",") {
			candidates = strings.Split(t, ",")
		} else {
			candidates = []string{t}
		}
	}
	var cleaned []string
	seen := map[string]bool{}
	codeCleanRE := regexp.MustCompile(`[^A-Za-z0-9]+`)
	for _, c := range candidates {
		norm := strings.ToUpper(codeCleanRE.ReplaceAllString(strings.TrimSpace(c), ""))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		cleaned = append(cleaned, norm)
	}
	return cleaned
}

// resolveSignalSQL renders the raw signal SQL for one step, applying the
// same type-specific formatting guardrails as compile_oracle_sql: vital
// and derived steps look up signal/name in the SignalMap; icu_stay and
// diagnosis get bespoke handling (exclusion defaulting, code cleanup);
// everything else falls through to a plain template format.
func resolveSignalSQL(signals *SignalMap, step Step) (sql string, skip bool, warning string) {
	params := step.Params
	switch step.Type {
	case "vital":
		signal := NormalizeSignalName(paramString(params, "signal", ""))
		tmpl, ok := signals.Templates[signal]
		if !ok {
			return "", true, "unknown vital signal: " + signal
		}
		return formatTemplate(tmpl, params), false, ""

	case "derived":
		name := NormalizeSignalName(paramString(params, "name", ""))
		tmpl, ok := signals.Templates[name]
		if !ok {
			return "SELECT stay_id, intime as charttime FROM SSO.ICUSTAYS WHERE stay_id IS NOT NULL", false,
				"unknown derived signal: " + name + ", falling back to ICUSTAYS"
		}
		return formatTemplate(tmpl, params), false, ""

	case "icu_stay":
		minLOS := paramFloat(params, "min_los", 0)
		if step.IsExclusion {
			if minLOS <= 0 {
				minLOS = 1.0
			}
			return fmt.Sprintf("SELECT stay_id, hadm_id, intime as charttime FROM SSO.ICUSTAYS WHERE los < %s", trimmedFloat(minLOS)), false, ""
		}
		tmpl := signals.Templates["icu_stay"]
		return fmt.Sprintf(tmpl, trimmedFloat(minLOS)), false, ""

	case "diagnosis":
		codes := paramCodes(params)
		if len(codes) == 0 {
			return "", true, "diagnosis codes are empty; skipping step"
		}
		quoted := make([]string, len(codes))
		for i, c := range codes {
			quoted[i] = "'" + c + "'"
		}
		tmpl := signals.Templates["diagnosis"]
		return fmt.Sprintf(tmpl, strings.Join(quoted, ", ")), false, ""

	default:
		tmpl, ok := signals.Templates[step.Type]
		if !ok {
			return "", true, "unsupported step type: " + step.Type
		}
		return formatTemplate(tmpl, params), false, ""
	}
}

func trimmedFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatTemplate fills a two-placeholder (min/max or operator/value)
// template using whichever pair of params the step supplies, defaulting
// to a permissive pair when absent.
func formatTemplate(tmpl string, params map[string]any) string {
	if strings.Contains(tmpl, "%[2]s") {
		if _, hasMin := params["min"]; hasMin {
			return fmt.Sprintf(tmpl, paramString(params, "min", "0"), paramString(params, "max", "150"))
		}
		return fmt.Sprintf(tmpl, paramString(params, "operator", "="), paramString(params, "value", "0"))
	}
	return fmt.Sprintf(tmpl, paramString(params, "gender", paramString(params, "drug", "")))
}

// CompileOracleSQL assembles the MIMIC-IV Oracle CTE cascade for intent:
// a first CTE restricting to each patient's first ICU stay with LOS >=
// 24h (the population CTE is always first-stay ICU > 24h), then one CTE per
// step applying EXISTS (inclusion) or NOT EXISTS (exclusion) against the
// step's signal SQL joined on the best-available identifier.
func CompileOracleSQL(signals *SignalMap, intent CohortIntent) CompiledSQL {
	var ctes []string
	var stepLabels []string
	var stepRefs []string
	var warnings []string

	ctes = append(ctes, `population AS (
    SELECT subject_id, hadm_id, stay_id, intime, outtime, admittime
    FROM (
        SELECT a.subject_id, a.hadm_id, i.stay_id, i.intime, i.outtime, a.admittime,
               ROW_NUMBER() OVER (PARTITION BY a.subject_id ORDER BY i.intime) AS rn
        FROM SSO.ADMISSIONS a
        JOIN SSO.ICUSTAYS i ON a.hadm_id = i.hadm_id
        WHERE (CAST(i.outtime AS DATE) - CAST(i.intime AS DATE)) >= 1
    )
    WHERE rn = 1
)`)
	stepLabels = append(stepLabels, "Initial Population (First ICU Stay & >24h)")
	stepRefs = append(stepRefs, "population")

	currentPrev := "population"

	for i, step := range intent.Steps {
		signalSQL, skip, warning := resolveSignalSQL(signals, step)
		if warning != "" {
			warnings = append(warnings, fmt.Sprintf("step %d: %s", i+1, warning))
		}
		if skip {
			continue
		}

		preferredKey := bestJoinKey(step.Type)
		joinKey, ok := resolveJoinKey(preferredKey, signalSQL)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("step %d: no identifier column in projected SELECT list, skipping", i+1))
			continue
		}

		operator := "EXISTS"
		if step.IsExclusion {
			operator = "NOT EXISTS"
		}

		conditions := []string{fmt.Sprintf("s.%s = p.%s", joinKey, joinKey)}
		if step.Window != "" {
			if frag, ok := windowTemplates[step.Window]; ok && strings.Contains(strings.ToLower(signalSQL), "charttime") {
				conditions = append(conditions, frag)
			}
		}

		stepName := fmt.Sprintf("step_%d_%s", i+1, sanitizeStepSlug(step.Type))
		cte := fmt.Sprintf(`%s AS (
    SELECT p.*
    FROM %s p
    WHERE %s (
        SELECT 1 FROM (%s) s
        WHERE %s
    )
)`, stepName, currentPrev, operator, signalSQL, strings.Join(conditions, " AND "))

		ctes = append(ctes, cte)
		label := step.Name
		if label == "" {
			label = stepName
		}
		stepLabels = append(stepLabels, label)
		stepRefs = append(stepRefs, stepName)
		currentPrev = stepName
	}

	cteBlock := strings.Join(ctes, ",\n")
	cohortSQL := fmt.Sprintf("WITH %s\nSELECT * FROM %s FETCH FIRST 100 ROWS ONLY", cteBlock, currentPrev)
	countSQL := fmt.Sprintf("WITH %s\nSELECT count(*) AS patient_count FROM %s", cteBlock, currentPrev)

	var funnelParts []string
	for i, label := range stepLabels {
		safeLabel := strings.ReplaceAll(label, "'", "''")
		funnelParts = append(funnelParts, fmt.Sprintf("SELECT '%s' AS step_name, count(*) AS cnt FROM %s", safeLabel, stepRefs[i]))
	}
	funnelParts = append(funnelParts, fmt.Sprintf("SELECT 'Final Cohort' AS step_name, count(*) AS cnt FROM %s", currentPrev))
	debugCountSQL := "WITH " + cteBlock + "\n" + strings.Join(funnelParts, " UNION ALL ")

	return CompiledSQL{CohortSQL: cohortSQL, CountSQL: countSQL, DebugCountSQL: debugCountSQL, Warnings: warnings}
}

// relaxIntent drops every non-mandatory inclusion step, used when the strict
// cohort returns zero rows; exclusion steps and steps the LLM annotated as
// mandatory always survive.
func relaxIntent(intent CohortIntent) CohortIntent {
	kept := make([]Step, 0, len(intent.Steps))
	for _, s := range intent.Steps {
		if !s.IsMandatory && !s.IsExclusion {
			continue
		}
		kept = append(kept, s)
	}
	return CohortIntent{Steps: kept}
}

// sortedSignalNames returns a SignalMap's keys in sorted order, giving
// GenerateIntent's prompt (and the tests) a stable ordering.
func sortedSignalNames(m *SignalMap) []string {
	names := make([]string, 0, len(m.Templates))
	for k := range m.Templates {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
