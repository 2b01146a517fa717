package postprocess

import (
	"strings"
	"testing"
)

func TestRouteBaseTable_ReroutesWrongSource(t *testing.T) {
	out, rules := routeBaseTable("어떤 약물이 가장 많이 처방되었나요?", "SELECT * FROM PATIENTS")
	if !strings.Contains(out, "FROM PRESCRIPTIONS") {
		t.Fatalf("expected reroute to PRESCRIPTIONS, got %q", out)
	}
	if len(rules) != 1 || !strings.Contains(rules[0], "route:") {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestRouteBaseTable_SkipsWhenTableAlreadyPresent(t *testing.T) {
	sql := "SELECT * FROM ADMISSIONS a JOIN PRESCRIPTIONS pr ON a.HADM_ID = pr.HADM_ID"
	out, rules := routeBaseTable("most prescribed drug", sql)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected no reroute when the routed table is already joined, got %q %v", out, rules)
	}
}

func TestEnsureDimensionJoins_ChartEventsLabel(t *testing.T) {
	sql := "SELECT LABEL, COUNT(*) FROM CHARTEVENTS ce WHERE ce.STAY_ID = 1"
	out, rules := ensureDimensionJoins(sql)
	if !strings.Contains(out, "JOIN D_ITEMS di ON ce.ITEMID = di.ITEMID") {
		t.Fatalf("expected D_ITEMS join, got %q", out)
	}
	if !strings.Contains(out, "di.LABEL") {
		t.Fatalf("expected LABEL qualified with the dimension alias, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestEnsureDimensionJoins_DiagnosesLongTitle(t *testing.T) {
	sql := "SELECT LONG_TITLE FROM DIAGNOSES_ICD d WHERE d.SUBJECT_ID = 7"
	out, _ := ensureDimensionJoins(sql)
	if !strings.Contains(out, "JOIN D_ICD_DIAGNOSES dd ON d.ICD_CODE = dd.ICD_CODE AND d.ICD_VERSION = dd.ICD_VERSION") {
		t.Fatalf("expected composite-key dimension join, got %q", out)
	}
	if !strings.Contains(out, "dd.LONG_TITLE") {
		t.Fatalf("expected LONG_TITLE qualified, got %q", out)
	}
}

func TestEnsureDimensionJoins_SkipsWhenDimensionPresent(t *testing.T) {
	sql := "SELECT di.LABEL FROM CHARTEVENTS ce JOIN D_ITEMS di ON ce.ITEMID = di.ITEMID"
	out, rules := ensureDimensionJoins(sql)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected no change, got %q %v", out, rules)
	}
}

func TestCanonicalizeForIntent_AnchorAgeByAdmissionType(t *testing.T) {
	out, rules := canonicalizeForIntent("average anchor age by admission type", "SELECT ANCHOR_YEAR_GROUP FROM PATIENTS")
	if !strings.Contains(out, "AVG(p.ANCHOR_AGE)") || !strings.Contains(out, "GROUP BY a.ADMISSION_TYPE") {
		t.Fatalf("expected the canonical age-by-admission-type form, got %q", out)
	}
	if len(rules) != 1 || rules[0] != "canonical_anchor_age_by_admission_type" {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestCanonicalizeForIntent_AveragePerAdmissionUsesDraftBase(t *testing.T) {
	out, _ := canonicalizeForIntent("입원 당 평균 처방 건수는?", "SELECT COUNT(*) FROM PRESCRIPTIONS")
	if !strings.Contains(out, "FROM PRESCRIPTIONS") || !strings.Contains(out, "GROUP BY HADM_ID") {
		t.Fatalf("expected per-admission canonical form over the draft's base table, got %q", out)
	}
}

func TestCanonicalizeForIntent_NoMatchLeavesSQLAlone(t *testing.T) {
	sql := "SELECT GENDER FROM PATIENTS"
	out, rules := canonicalizeForIntent("환자 성별을 보여줘", sql)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected no canonicalization, got %q %v", out, rules)
	}
}

func TestReorderCountProjection(t *testing.T) {
	out, rules := reorderCountProjection("SELECT COUNT(*) AS CNT, ADMISSION_TYPE FROM ADMISSIONS GROUP BY ADMISSION_TYPE")
	if !strings.HasPrefix(out, "SELECT ADMISSION_TYPE, COUNT(*) AS CNT") {
		t.Fatalf("expected grouped column first, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestEnsureNotNullGuards_GroupByColumn(t *testing.T) {
	out, rules := ensureNotNullGuards("SELECT ADMISSION_TYPE, COUNT(*) AS CNT FROM ADMISSIONS GROUP BY ADMISSION_TYPE")
	if !strings.Contains(out, "WHERE ADMISSION_TYPE IS NOT NULL GROUP BY") {
		t.Fatalf("expected a NOT NULL guard before GROUP BY, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestEnsureNotNullGuards_AvgColumn(t *testing.T) {
	out, _ := ensureNotNullGuards("SELECT AVG(ANCHOR_AGE) FROM PATIENTS WHERE GENDER = 'F'")
	if !strings.Contains(out, "WHERE ANCHOR_AGE IS NOT NULL AND GENDER = 'F'") {
		t.Fatalf("expected AVG argument guarded in the existing WHERE, got %q", out)
	}
}

func TestEnsureNotNullGuards_SkipsSubqueries(t *testing.T) {
	sql := "SELECT AVG(CNT) FROM (SELECT HADM_ID, COUNT(*) AS CNT FROM LABEVENTS GROUP BY HADM_ID)"
	out, rules := ensureNotNullGuards(sql)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected nested query untouched, got %q %v", out, rules)
	}
}

func TestEnsureRankingOrder_AppendsOrderByCntDesc(t *testing.T) {
	sql := "SELECT ADMISSION_TYPE, COUNT(*) AS CNT FROM ADMISSIONS GROUP BY ADMISSION_TYPE"
	out, rules := ensureRankingOrder("환자 수가 가장 많은 입원 유형은?", sql)
	if !strings.HasSuffix(out, "ORDER BY CNT DESC") {
		t.Fatalf("expected ranking order appended, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestEnsureRankingOrder_SkipsWithoutRankingIntent(t *testing.T) {
	sql := "SELECT ADMISSION_TYPE, COUNT(*) AS CNT FROM ADMISSIONS GROUP BY ADMISSION_TYPE"
	out, rules := ensureRankingOrder("count admissions by type", sql)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected no order appended, got %q %v", out, rules)
	}
}

func TestPushdownOuterPredicates(t *testing.T) {
	sql := "SELECT * FROM (SELECT SUBJECT_ID, GENDER FROM PATIENTS) WHERE ROWNUM <= 100 AND GENDER = 'M'"
	out, rules := pushdownOuterPredicates(sql)
	if !strings.Contains(out, "FROM PATIENTS WHERE GENDER = 'M'") {
		t.Fatalf("expected predicate pushed into the inner SELECT, got %q", out)
	}
	if !strings.HasSuffix(out, "WHERE ROWNUM <= 100") {
		t.Fatalf("expected only the cap left on the wrapper, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestPushdownOuterPredicates_MergesIntoExistingInnerWhere(t *testing.T) {
	sql := "SELECT * FROM (SELECT SUBJECT_ID FROM PATIENTS WHERE ANCHOR_AGE > 65) WHERE ROWNUM <= 50 AND GENDER = 'F'"
	out, _ := pushdownOuterPredicates(sql)
	if !strings.Contains(out, "WHERE GENDER = 'F' AND ANCHOR_AGE > 65") {
		t.Fatalf("expected predicate merged into inner WHERE, got %q", out)
	}
}

func TestApplyRownumCap_SkipsTopKAggregate(t *testing.T) {
	sql := "SELECT ITEMID, COUNT(*) AS CNT FROM LABEVENTS GROUP BY ITEMID ORDER BY CNT DESC"
	out, rules := applyRownumCap(sql, 500)
	if out != sql || len(rules) != 0 {
		t.Fatalf("expected top-k aggregate left uncapped, got %q %v", out, rules)
	}
}

// The full admission-type ranking path: routing, hygiene, and ordering
// compose into a grouped, guarded, ranked query.
func TestRun_KoreanAdmissionTypeQuestion(t *testing.T) {
	res := Run("환자 수가 가장 많은 입원 유형은?",
		"SELECT ADMISSION_TYPE, COUNT(*) AS TOTAL FROM ADMISSIONS GROUP BY ADMISSION_TYPE",
		Options{RowCap: 1000, SampleRows: 1000})
	up := strings.ToUpper(res.SQL)
	if !strings.Contains(up, "ADMISSION_TYPE") || !strings.Contains(up, "GROUP BY") {
		t.Fatalf("expected grouped admission-type query, got %q", res.SQL)
	}
	if !strings.Contains(up, "ORDER BY CNT DESC") {
		t.Fatalf("expected ranking order, got %q", res.SQL)
	}
	if !strings.Contains(up, "ADMISSION_TYPE IS NOT NULL") {
		t.Fatalf("expected NOT NULL guard, got %q", res.SQL)
	}
}

func TestRun_NewRulesIdempotent(t *testing.T) {
	cases := []struct {
		name     string
		question string
		sql      string
	}{
		{
			name:     "ranking order + guards",
			question: "환자 수가 가장 많은 입원 유형은?",
			sql:      "SELECT ADMISSION_TYPE, COUNT(*) AS TOTAL FROM ADMISSIONS GROUP BY ADMISSION_TYPE",
		},
		{
			name:     "dimension join",
			question: "most frequent chart measurements",
			sql:      "SELECT LABEL, COUNT(*) AS CNT FROM CHARTEVENTS ce GROUP BY LABEL",
		},
		{
			name:     "table routing",
			question: "어떤 약물이 가장 많이 처방되었나요?",
			sql:      "SELECT * FROM PATIENTS",
		},
		{
			name:     "predicate pushdown",
			question: "sample male patients",
			sql:      "SELECT * FROM (SELECT SUBJECT_ID, GENDER FROM PATIENTS) WHERE ROWNUM <= 100 AND GENDER = 'M'",
		},
		{
			name:     "intent canonicalization",
			question: "average anchor age by admission type",
			sql:      "SELECT ANCHOR_YEAR_GROUP FROM PATIENTS",
		},
		{
			name:     "per-admission canonicalization over a heavy table",
			question: "입원 당 평균 처방 건수는?",
			sql:      "SELECT COUNT(*) FROM PRESCRIPTIONS",
		},
	}
	opts := Options{RowCap: 1000, SampleRows: 1000}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			once := Run(tc.question, tc.sql, opts)
			twice := Run(tc.question, once.SQL, opts)
			if once.SQL != twice.SQL {
				t.Fatalf("not idempotent:\n once = %q\n twice = %q", once.SQL, twice.SQL)
			}
		})
	}
}
