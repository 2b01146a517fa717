package pdfcohort

import (
	"strings"
	"testing"
)

func TestCompileOracleSQL_IncludesPopulationCTEAndFetchCap(t *testing.T) {
	signals := NewSignalMap()
	compiled := CompileOracleSQL(signals, CohortIntent{})
	if !strings.Contains(compiled.CohortSQL, "population AS") {
		t.Fatalf("expected the base population CTE, got %q", compiled.CohortSQL)
	}
	if !strings.Contains(compiled.CohortSQL, "FETCH FIRST 100 ROWS ONLY") {
		t.Fatalf("expected a row cap on the cohort SQL, got %q", compiled.CohortSQL)
	}
}

func TestCompileOracleSQL_AgeStepAddsExistsFilter(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "Adult", Type: "age", Params: map[string]any{"min": 18.0, "max": 120.0}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if !strings.Contains(compiled.CohortSQL, "EXISTS") {
		t.Fatalf("expected an EXISTS join for an inclusion step, got %q", compiled.CohortSQL)
	}
	if strings.Contains(compiled.CohortSQL, "NOT EXISTS") {
		t.Fatalf("expected no NOT EXISTS for a non-exclusion step, got %q", compiled.CohortSQL)
	}
	if !strings.Contains(compiled.CohortSQL, "step_1_age") {
		t.Fatalf("expected a named step CTE, got %q", compiled.CohortSQL)
	}
}

func TestCompileOracleSQL_ExclusionStepUsesNotExists(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "No sepsis", Type: "diagnosis", IsExclusion: true, Params: map[string]any{"codes": []any{"A41.9"}}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if !strings.Contains(compiled.CohortSQL, "NOT EXISTS") {
		t.Fatalf("expected NOT EXISTS for an exclusion step, got %q", compiled.CohortSQL)
	}
}

func TestCompileOracleSQL_UnknownVitalSignalIsSkippedWithWarning(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "Unknown vital", Type: "vital", Params: map[string]any{"signal": "unobtainium_level"}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if len(compiled.Warnings) == 0 {
		t.Fatalf("expected a warning for an unknown vital signal")
	}
	if strings.Contains(compiled.CohortSQL, "step_1_vital") {
		t.Fatalf("expected the skipped step to not appear in the CTE chain, got %q", compiled.CohortSQL)
	}
}

func TestCompileOracleSQL_DiagnosisWithNoCodesSkipsStep(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "Empty codes", Type: "diagnosis", Params: map[string]any{}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if len(compiled.Warnings) == 0 {
		t.Fatalf("expected a warning for an empty diagnosis code list")
	}
}

func TestCompileOracleSQL_WindowAddsWhenSignalHasCharttime(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "Early creatinine", Type: "vital", Window: "icu_first_24h", Params: map[string]any{"signal": "creatinine", "min": 0.0, "max": 5.0}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if !strings.Contains(compiled.CohortSQL, "INTERVAL '24' HOUR") {
		t.Fatalf("expected the window fragment to be applied, got %q", compiled.CohortSQL)
	}
}

func TestCompileOracleSQL_DebugCountIncludesFunnelForEveryStepPlusFinal(t *testing.T) {
	signals := NewSignalMap()
	intent := CohortIntent{Steps: []Step{
		{Name: "Adult", Type: "age", Params: map[string]any{"min": 18.0, "max": 120.0}},
	}}
	compiled := CompileOracleSQL(signals, intent)
	if !strings.Contains(compiled.DebugCountSQL, "Initial Population") {
		t.Fatalf("expected the population step counted in the funnel, got %q", compiled.DebugCountSQL)
	}
	if !strings.Contains(compiled.DebugCountSQL, "Final Cohort") {
		t.Fatalf("expected a Final Cohort funnel row, got %q", compiled.DebugCountSQL)
	}
	if !strings.Contains(compiled.DebugCountSQL, "Adult") {
		t.Fatalf("expected the named step label in the funnel, got %q", compiled.DebugCountSQL)
	}
}

func TestResolveJoinKey_PrefersPreferredWhenAvailable(t *testing.T) {
	key, ok := resolveJoinKey("hadm_id", "SELECT hadm_id, charttime FROM SSO.LABEVENTS")
	if !ok || key != "hadm_id" {
		t.Fatalf("resolveJoinKey = (%q, %v), want (hadm_id, true)", key, ok)
	}
}

func TestResolveJoinKey_FallsBackInFixedOrder(t *testing.T) {
	key, ok := resolveJoinKey("subject_id", "SELECT stay_id, charttime FROM SSO.CHARTEVENTS")
	if !ok || key != "stay_id" {
		t.Fatalf("resolveJoinKey = (%q, %v), want (stay_id, true)", key, ok)
	}
}

func TestResolveJoinKey_NoIdentifierFails(t *testing.T) {
	_, ok := resolveJoinKey("hadm_id", "SELECT valuenum FROM SSO.LABEVENTS")
	if ok {
		t.Fatalf("expected resolveJoinKey to fail when no identifier is projected")
	}
}

func TestSelectKeys_StarProjectsAllIdentifiers(t *testing.T) {
	keys := selectKeys("SELECT * FROM SSO.ICUSTAYS")
	if !keys["subject_id"] || !keys["hadm_id"] || !keys["stay_id"] {
		t.Fatalf("expected all identifiers for a SELECT *, got %v", keys)
	}
}

func TestSanitizeStepSlug_NormalizesAndFallsBackToUnknown(t *testing.T) {
	if got := sanitizeStepSlug("Adult!! 18+"); got != "adult_18" {
		t.Fatalf("sanitizeStepSlug = %q, want adult_18", got)
	}
	if got := sanitizeStepSlug("###"); got != "unknown" {
		t.Fatalf("sanitizeStepSlug of only-punctuation = %q, want unknown", got)
	}
}

func TestBestJoinKey_HospitalLevelTypesUseHadmID(t *testing.T) {
	if bestJoinKey("diagnosis") != "hadm_id" {
		t.Fatalf("expected diagnosis steps to prefer hadm_id")
	}
	if bestJoinKey("vital") != "stay_id" {
		t.Fatalf("expected vital steps to prefer stay_id")
	}
}

func TestParamCodes_DedupesAndUppercasesCommaSeparatedString(t *testing.T) {
	codes := paramCodes(map[string]any{"codes": "a41.9, A41.9, r65.21"})
	if len(codes) != 2 {
		t.Fatalf("expected deduplication across case/punctuation, got %v", codes)
	}
	for _, c := range codes {
		if c != strings.ToUpper(c) {
			t.Fatalf("expected codes uppercased, got %v", codes)
		}
	}
}

func TestParamCodes_AcceptsJSONArray(t *testing.T) {
	codes := paramCodes(map[string]any{"codes": []any{"A41.9", "R65.21"}})
	if len(codes) != 2 {
		t.Fatalf("expected two codes from a JSON array, got %v", codes)
	}
}

func TestParamFloat_ParsesStringFallsBackOnInvalid(t *testing.T) {
	if got := paramFloat(map[string]any{"min": "18.5"}, "min", 0); got != 18.5 {
		t.Fatalf("paramFloat = %v, want 18.5", got)
	}
	if got := paramFloat(map[string]any{"min": "not-a-number"}, "min", 7); got != 7 {
		t.Fatalf("paramFloat on invalid string = %v, want default 7", got)
	}
}

func TestRelaxIntent_KeepsOnlyMandatoryOrExclusionSteps(t *testing.T) {
	intent := CohortIntent{Steps: []Step{
		{Name: "mandatory", IsMandatory: true},
		{Name: "optional inclusion", IsMandatory: false, IsExclusion: false},
		{Name: "exclusion always kept", IsMandatory: false, IsExclusion: true},
	}}
	relaxed := relaxIntent(intent)
	if len(relaxed.Steps) != 2 {
		t.Fatalf("expected 2 steps kept after relaxing, got %d: %v", len(relaxed.Steps), relaxed.Steps)
	}
	for _, s := range relaxed.Steps {
		if s.Name == "optional inclusion" {
			t.Fatalf("expected the optional inclusion step to be dropped")
		}
	}
}

func TestSortedSignalNames_IsAlphabetical(t *testing.T) {
	names := sortedSignalNames(NewSignalMap())
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("expected alphabetical order, got %v", names)
		}
	}
}
