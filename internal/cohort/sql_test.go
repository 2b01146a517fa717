package cohort

import (
	"strings"
	"testing"

	"reactsql-mimic/internal/metadata"
)

func TestBuildBundle_ContainsAllNamedKeys(t *testing.T) {
	bundle := BuildBundle(DefaultParams(), nil, nil)
	wantKeys := []string{
		"cohort_cte", "metrics_sql", "age_subgroup_sql", "gender_subgroup_sql",
		"comorbidity_subgroup_sql", "life_table_sql", "patient_count_sql",
		"readmission_rate_sql", "mortality_rate_sql", "avg_los_sql", "median_los_sql",
		"readmission_7d_rate_sql", "long_stay_rate_sql", "icu_admission_rate_sql",
		"er_admission_rate_sql",
	}
	for _, k := range wantKeys {
		if _, ok := bundle[k]; !ok {
			t.Errorf("missing bundle key %q", k)
		}
	}
}

func TestBuildBundle_GenderClauseOnlyForMOrF(t *testing.T) {
	p := DefaultParams()
	p.Gender = "M"
	bundle := BuildBundle(p, nil, nil)
	if !strings.Contains(bundle["cohort_cte"], "GENDER)) = 'M'") {
		t.Fatalf("expected gender filter for M, cte=%s", bundle["cohort_cte"])
	}

	p.Gender = "all"
	bundle = BuildBundle(p, nil, nil)
	if strings.Contains(bundle["cohort_cte"], "GENDER)) = ") {
		t.Fatalf("expected no gender filter for 'all', cte=%s", bundle["cohort_cte"])
	}
}

func TestBuildBundle_EntryFilterClauses(t *testing.T) {
	p := DefaultParams()
	p.EntryFilter = "er"
	bundle := BuildBundle(p, nil, nil)
	if !strings.Contains(bundle["cohort_cte"], "LIKE '%EMERGENCY%'") {
		t.Fatalf("expected ER entry clause present")
	}

	p.EntryFilter = "non_er"
	bundle = BuildBundle(p, nil, nil)
	if !strings.Contains(bundle["cohort_cte"], "NOT LIKE '%EMERGENCY%'") {
		t.Fatalf("expected non-ER entry clause present")
	}
}

func TestBuildBundle_OutcomeFilterClauses(t *testing.T) {
	p := DefaultParams()
	p.OutcomeFilter = "expired"
	bundle := BuildBundle(p, nil, nil)
	if !strings.Contains(bundle["cohort_cte"], "HOSPITAL_EXPIRE_FLAG = 1") {
		t.Fatalf("expected expired outcome clause present")
	}

	p.OutcomeFilter = "survived"
	bundle = BuildBundle(p, nil, nil)
	if !strings.Contains(bundle["cohort_cte"], "NVL(a.HOSPITAL_EXPIRE_FLAG, 0) = 0") {
		t.Fatalf("expected survived outcome clause present")
	}
}

func TestBuildBundle_NoComorbidityStoreYieldsEmptyTypedSelect(t *testing.T) {
	bundle := BuildBundle(DefaultParams(), nil, nil)
	if !strings.Contains(bundle["comorbidity_subgroup_sql"], "WHERE 1 = 0") {
		t.Fatalf("expected an always-false comorbidity select without a store, got %s", bundle["comorbidity_subgroup_sql"])
	}
}

func TestBuildBundle_ComorbidityStoreProducesUnionBranches(t *testing.T) {
	store := metadata.NewComorbidityStore()
	bundle := BuildBundle(DefaultParams(), store, nil)
	sql := bundle["comorbidity_subgroup_sql"]
	if !strings.Contains(sql, "UNION ALL") {
		t.Fatalf("expected a UNION ALL across comorbidity groups, got %s", sql)
	}
	if !strings.Contains(sql, "dx_flags") {
		t.Fatalf("expected a dx_flags CTE, got %s", sql)
	}
}

func TestIcdPrefixCondition_EmptyPrefixesIsAlwaysFalse(t *testing.T) {
	if got := icdPrefixCondition("d.ICD_CODE", nil); got != "1 = 0" {
		t.Fatalf("icdPrefixCondition(nil) = %q, want always-false", got)
	}
}

func TestIcdPrefixCondition_JoinsWithOr(t *testing.T) {
	got := icdPrefixCondition("d.ICD_CODE", []string{"E10", "E11"})
	if !strings.Contains(got, "d.ICD_CODE LIKE 'E10%'") || !strings.Contains(got, " OR ") {
		t.Fatalf("unexpected condition: %s", got)
	}
}

func TestParamsCacheKey_DiffersOnAnyField(t *testing.T) {
	base := DefaultParams()
	changed := DefaultParams()
	changed.AgeThreshold = 70
	if ParamsCacheKey(base) == ParamsCacheKey(changed) {
		t.Fatalf("expected cache key to differ when AgeThreshold changes")
	}
}

func TestParamsCacheKey_Stable(t *testing.T) {
	p := DefaultParams()
	if ParamsCacheKey(p) != ParamsCacheKey(p) {
		t.Fatalf("expected a stable cache key for identical params")
	}
}
