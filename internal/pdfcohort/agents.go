package pdfcohort

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"reactsql-mimic/internal/agent"
)

// EvidenceSource records where an extracted criterion came from.
type EvidenceSource struct {
	Type string `json:"type"` // text|figure|table
	Page string `json:"page"`
}

// Criterion is one inclusion/exclusion line item extracted from the PDF.
type Criterion struct {
	Criterion             string         `json:"criterion"`
	Type                  string         `json:"type"` // inclusion|exclusion
	OperationalDefinition string         `json:"operational_definition"`
	Evidence              string         `json:"evidence"`
	EvidenceSource        EvidenceSource `json:"evidence_source"`
}

// ExtractedVariable is one clinical variable named in the PDF, prior to
// mapping against the signal map.
type ExtractedVariable struct {
	SignalName  string `json:"signal_name"`
	Description string `json:"description"`
}

// CohortDefinition is the full structured extraction produced from PDF
// text + asset summaries by the condition-extraction agent.
type CohortDefinition struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	SummaryKO           string `json:"summary_ko"`
	CriteriaSummaryKO   string `json:"criteria_summary_ko"`
	ExtractionDetails struct {
		CohortCriteria struct {
			Population    []Criterion `json:"population"`
			IndexUnit     string      `json:"index_unit"`
			FirstStayOnly string      `json:"first_stay_only"`
		} `json:"cohort_criteria"`
		DiagnosisCriteria struct {
			CodingSystem string   `json:"coding_system"`
			Codes        []string `json:"codes"`
		} `json:"diagnosis_criteria"`
	} `json:"extraction_details"`
	Variables []ExtractedVariable `json:"variables"`
}

const extractConditionsSystemPrompt = `You are an expert at extracting clinical cohort eligibility criteria from study text. Return only the requested JSON object, no prose.`

// ExtractConditions runs the first pipeline stage: turn PDF full text
// plus an asset summary into a CohortDefinition JSON. Visual assets are
// preferred over text on conflict.
func ExtractConditions(ctx context.Context, llm llms.Model, fullText, assetsSummary string) (CohortDefinition, string, error) {
	prompt := fmt.Sprintf(`%s

Extract cohort eligibility criteria (inclusion/exclusion) from the study below without omission.
Prefer table/figure values over body text when they disagree.
Convert every diagnosis condition to its ICD-9/10 code(s) in "codes", never leave it as free text.
Mark a criterion is_mandatory-equivalent false when the text is ambiguous about the threshold.

## TEXT CONTENT
%s

## VISUAL ASSETS
%s

Return a JSON object with keys: title, description, summary_ko, criteria_summary_ko, extraction_details (cohort_criteria.population[], cohort_criteria.index_unit, cohort_criteria.first_stay_only, diagnosis_criteria.coding_system, diagnosis_criteria.codes), variables[] (signal_name, description).`,
		extractConditionsSystemPrompt, fullText, assetsSummary)

	var def CohortDefinition
	raw, err := agent.CallJSON(ctx, llm, prompt, &def)
	return def, raw, err
}

const generateIntentSystemPrompt = `You are a MIMIC-IV cohort design expert. Never write SQL directly; only emit the requested intent JSON using the supplied signal vocabulary.`

// intentJSON mirrors the {"steps": [...]} wrapper CallJSON decodes into.
type intentJSON struct {
	Steps []Step `json:"steps"`
}

// GenerateIntent runs the second pipeline stage: turn a CohortDefinition
// into a CohortIntent (the steps the compiler will turn into CTEs),
// leaving SQL compilation itself to CompileOracleSQL.
func GenerateIntent(ctx context.Context, llm llms.Model, def CohortDefinition, signals *SignalMap) (CohortIntent, string, error) {
	prompt := fmt.Sprintf(`%s

## RULES
1. Only use the signal vocabulary below; never guess an itemid.
2. Use type "vital" for vital signs, "lab" for lab results, "derived" for composite scores (sofa, rox, oasis) with params.name set to the token.
3. Use the "window" field with a known window token (icu_first_24h, admission_first_24h, icu_discharge_last_24h) instead of computing dates yourself.
4. Mark exclusion steps with is_exclusion=true.
5. Mark non-essential steps is_mandatory=false so they can be dropped if the cohort comes back empty.
6. Combine steps with implicit AND.
7. An "ICU stay < 24h excluded" criterion must be type icu_stay, params.min_los=1, is_exclusion=true.

## KNOWN SIGNALS
%v

## COHORT DEFINITION
%+v

Return a JSON object: {"steps": [{"name", "type", "params", "window", "is_exclusion", "is_mandatory"}]}.`,
		generateIntentSystemPrompt, sortedSignalNames(signals), def)

	var wrapper intentJSON
	raw, err := agent.CallJSON(ctx, llm, prompt, &wrapper)
	return CohortIntent{Steps: wrapper.Steps}, raw, err
}

// SQLRewrite is the JSON contract for RewriteToPatientLevel.
type SQLRewrite struct {
	FinalSQL   string   `json:"final_sql"`
	UsedTables []string `json:"used_tables"`
}

const rewriteSystemPrompt = `You rewrite Oracle CTE-cascade cohort SQL so the final SELECT returns
patient-level rows (subject_id, hadm_id, stay_id) instead of an aggregate-only result. Keep every
existing CTE and filtering logic; only change the final SELECT. Respond with ONLY a JSON object:
{"final_sql": string, "used_tables": [string]}.`

// RewriteToPatientLevel asks the model to rewrite an aggregate-only final
// SELECT into a patient-level one without touching the CTE filters; the
// pipeline runs it when the executed result has rows but no identifier
// columns (a zero-row result goes through relaxation instead).
func RewriteToPatientLevel(ctx context.Context, llm llms.Model, sql string) (SQLRewrite, string, error) {
	prompt := fmt.Sprintf("%s\n\nSQL:\n%s\n", rewriteSystemPrompt, sql)
	var out SQLRewrite
	raw, err := agent.CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}

const relaxSystemPrompt = `The previous cohort SQL executed successfully but returned zero rows.
Relax the constraints: broaden ICD code matching with LIKE, remove non-essential lab thresholds,
and keep identifier propagation and join keys intact. Respond with ONLY a JSON object:
{"final_sql": string, "used_tables": [string]}.`

// RelaxSQL asks the model to loosen an overly strict cohort query; it
// runs only after the deterministic relaxation pass still returns zero
// rows.
func RelaxSQL(ctx context.Context, llm llms.Model, sql string) (SQLRewrite, string, error) {
	prompt := fmt.Sprintf("%s\n\nSQL:\n%s\n", relaxSystemPrompt, sql)
	var out SQLRewrite
	raw, err := agent.CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
