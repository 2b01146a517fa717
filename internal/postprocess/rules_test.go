package postprocess

import (
	"strings"
	"testing"
)

func TestRun_TemplatedShortcutBypassesRewriting(t *testing.T) {
	res := Run("Count rows in PATIENTS (sampled)", "irrelevant draft sql", Options{RowCap: 1000, SampleRows: 1000})
	want := "SELECT COUNT(*) AS cnt FROM PATIENTS WHERE ROWNUM <= 1000"
	if res.SQL != want {
		t.Fatalf("SQL = %q, want %q", res.SQL, want)
	}
	if len(res.AppliedTags) != 1 || res.AppliedTags[0] != "templated_shortcut" {
		t.Fatalf("expected only templated_shortcut tag, got %v", res.AppliedTags)
	}
}

func TestRun_SampleRowsShortcut(t *testing.T) {
	res := Run("Show sample PATIENTS rows with SUBJECT_ID, GENDER", "ignored", Options{RowCap: 1000, SampleRows: 1000})
	want := "SELECT SUBJECT_ID, GENDER FROM PATIENTS WHERE ROWNUM <= 10"
	if res.SQL != want {
		t.Fatalf("SQL = %q, want %q", res.SQL, want)
	}
}

// Idempotence: Run(Run(sql)) == Run(sql).
func TestRun_Idempotence(t *testing.T) {
	cases := []struct {
		name     string
		question string
		sql      string
	}{
		{
			name:     "alias rewrite + rownum cap",
			question: "how many lab events are there",
			sql:      "SELECT COUNT(*) FROM lab_events",
		},
		{
			name:     "limit to rownum",
			question: "list some patients",
			sql:      "SELECT * FROM PATIENTS LIMIT 50",
		},
		{
			name:     "where true cleanup",
			question: "list admissions",
			sql:      "SELECT * FROM ADMISSIONS WHERE TRUE AND GENDER = 'M'",
		},
		{
			name:     "demographic join",
			question: "average age by admission",
			sql:      "SELECT ANCHOR_AGE FROM ADMISSIONS WHERE HOSPITAL_EXPIRE_FLAG IS NOT NULL",
		},
		{
			name:     "heavy table rownum cap",
			question: "show chart events",
			sql:      "SELECT * FROM CHARTEVENTS",
		},
		{
			name:     "count alias normalization",
			question: "count admissions by type",
			sql:      "SELECT ADMISSION_TYPE, COUNT(*) AS TOTAL FROM ADMISSIONS GROUP BY ADMISSION_TYPE",
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

// Alias replacement must
// only touch identifier boundaries, never inside string literals.
func TestApplySchemaMappings_IdentifierBoundaryOnly(t *testing.T) {
	sql := "SELECT * FROM icu_stays WHERE NOTE = 'mentions icu_stays in free text'"
	out, rules := applySchemaMappings(sql)
	if !strings.Contains(out, "FROM ICUSTAYS") {
		t.Fatalf("expected table alias rewritten outside the string: %q", out)
	}
	if !strings.Contains(out, "'mentions icu_stays in free text'") {
		t.Fatalf("expected string literal left untouched: %q", out)
	}
	if len(rules) == 0 {
		t.Fatalf("expected at least one rule tag")
	}
}

func TestApplySchemaMappings_NoFalsePositiveOnSubstring(t *testing.T) {
	// "patient" must not match inside "patient_history" as a substring.
	sql := "SELECT * FROM patient_history"
	out, _ := applySchemaMappings(sql)
	if strings.Contains(out, "PATIENTS_history") {
		t.Fatalf("alias replace crossed a word boundary: %q", out)
	}
}

func TestRewriteClinicalSemantics_HasICUStayToExists(t *testing.T) {
	sql := "SELECT * FROM ADMISSIONS WHERE HAS_ICU_STAY = 1"
	out, rules := rewriteClinicalSemantics(sql)
	if !strings.Contains(out, "EXISTS (SELECT 1 FROM ICUSTAYS") {
		t.Fatalf("expected EXISTS subselect, got %q", out)
	}
	if len(rules) != 1 || rules[0] != "has_icu_stay_to_exists" {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestRewriteClinicalSemantics_HospitalExpireFlagNotNull(t *testing.T) {
	sql := "SELECT * FROM ADMISSIONS WHERE HOSPITAL_EXPIRE_FLAG IS NOT NULL"
	out, _ := rewriteClinicalSemantics(sql)
	if !strings.Contains(out, "HOSPITAL_EXPIRE_FLAG = 1") {
		t.Fatalf("expected flag rewritten to = 1, got %q", out)
	}
}

func TestRewriteOracleSyntax_LimitToRownum(t *testing.T) {
	out, rules := rewriteOracleSyntax("SELECT * FROM PATIENTS LIMIT 25")
	if !strings.Contains(out, "ROWNUM <= 25") {
		t.Fatalf("expected rownum wrap, got %q", out)
	}
	if len(rules) != 1 || rules[0] != "limit_to_rownum" {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestRewriteOracleSyntax_WhereTrue(t *testing.T) {
	out, _ := rewriteOracleSyntax("SELECT * FROM PATIENTS WHERE TRUE")
	if !strings.Contains(out, "WHERE 1=1") {
		t.Fatalf("expected WHERE TRUE -> WHERE 1=1, got %q", out)
	}
}

func TestRewriteOracleSyntax_ForUpdateStripped(t *testing.T) {
	out, rules := rewriteOracleSyntax("SELECT * FROM PATIENTS WHERE SUBJECT_ID = 1 FOR UPDATE")
	if strings.Contains(strings.ToUpper(out), "FOR UPDATE") {
		t.Fatalf("expected FOR UPDATE stripped, got %q", out)
	}
	if len(rules) != 1 || rules[0] != "strip_for_update" {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestApplyRownumCap_HeavyTableGetsCapped(t *testing.T) {
	out, rules := applyRownumCap("SELECT * FROM LABEVENTS WHERE ITEMID = 123", 500)
	if !strings.Contains(out, "ROWNUM <= 500") {
		t.Fatalf("expected rownum cap, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestApplyRownumCap_SkipsWhenAlreadyCapped(t *testing.T) {
	sql := "SELECT * FROM LABEVENTS WHERE ROWNUM <= 10"
	out, rules := applyRownumCap(sql, 500)
	if out != sql {
		t.Fatalf("expected no change, got %q", out)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules fired, got %v", rules)
	}
}

func TestNormalizeCountAliases_RenamesUnsafeAlias(t *testing.T) {
	out, rules := normalizeCountAliases("SELECT COUNT(*) AS TOTAL FROM ADMISSIONS")
	if !strings.Contains(out, "AS CNT") {
		t.Fatalf("expected alias renamed to CNT, got %q", out)
	}
	if len(rules) != 1 {
		t.Fatalf("unexpected rules: %v", rules)
	}
}

func TestApplySQLErrorTemplates_PrescriptionsMedicationToDrug(t *testing.T) {
	sql := "SELECT p.MEDICATION FROM PRESCRIPTIONS p WHERE p.SUBJECT_ID = 1"
	errMsg := `ORA-00904: "P"."MEDICATION": invalid identifier`
	out, rules := ApplySQLErrorTemplates("q", sql, errMsg, 1000)
	if !strings.Contains(out, "p.DRUG") {
		t.Fatalf("expected MEDICATION -> DRUG, got %q", out)
	}
	found := false
	for _, r := range rules {
		if strings.Contains(r, "medication_to_drug") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a medication->drug rule tag, got %v", rules)
	}
}

func TestApplySQLErrorTemplates_TransfersCareunitFix(t *testing.T) {
	sql := "SELECT t.FIRST_CAREUNIT, t.LAST_CAREUNIT FROM TRANSFERS t"
	errMsg := `ORA-00904: "T"."FIRST_CAREUNIT": invalid identifier`
	out, _ := ApplySQLErrorTemplates("q", sql, errMsg, 1000)
	if strings.Contains(out, "FIRST_CAREUNIT") || strings.Contains(out, "LAST_CAREUNIT") {
		t.Fatalf("expected both careunit columns rewritten, got %q", out)
	}
	if strings.Count(out, "t.CAREUNIT") != 2 {
		t.Fatalf("expected two CAREUNIT references, got %q", out)
	}
}

func TestApplySQLErrorTemplates_InvalidNumberDICDDiagnosesToDItems(t *testing.T) {
	sql := "SELECT d.ICD_CODE FROM PROCEDUREEVENTS pe JOIN D_ICD_DIAGNOSES d ON pe.ITEMID = d.ICD_CODE"
	errMsg := "ORA-01722: invalid number"
	out, rules := ApplySQLErrorTemplates("q", sql, errMsg, 1000)
	if !strings.Contains(out, "D_ITEMS") {
		t.Fatalf("expected D_ICD_DIAGNOSES -> D_ITEMS, got %q", out)
	}
	if len(rules) == 0 {
		t.Fatalf("expected at least one rule tag")
	}
}

func TestApplySQLErrorTemplates_TimeoutStripsOrderByUnlessTopN(t *testing.T) {
	sql := "SELECT SUBJECT_ID FROM PATIENTS ORDER BY SUBJECT_ID"
	out, rules := ApplySQLErrorTemplates("list all patients", sql, "DPY-4024: timeout", 1000)
	if strings.Contains(strings.ToUpper(out), "ORDER BY") {
		t.Fatalf("expected ORDER BY stripped, got %q", out)
	}
	if len(rules) == 0 {
		t.Fatalf("expected rule tags")
	}

	sqlTopN := "SELECT SUBJECT_ID FROM PATIENTS ORDER BY SUBJECT_ID"
	outTopN, _ := ApplySQLErrorTemplates("top 10 patients by age", sqlTopN, "DPY-4024: timeout", 1000)
	if !strings.Contains(strings.ToUpper(outTopN), "ORDER BY") {
		t.Fatalf("expected ORDER BY kept for a top-N question, got %q", outTopN)
	}
	if !strings.Contains(outTopN, "ROWNUM") {
		t.Fatalf("expected a rownum cap applied for top-N timeout repair, got %q", outTopN)
	}
}

func TestApplySQLErrorTemplates_TimeoutCapsRowsBetween1000And5000(t *testing.T) {
	_, rules := ApplySQLErrorTemplates("list all patients", "SELECT SUBJECT_ID FROM PATIENTS", "ORA-03156", 20000)
	found := false
	for _, r := range rules {
		if strings.Contains(r, "rownum_cap:5000") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rownum cap clamped to 5000, got %v", rules)
	}
}

func TestRunWithErrorRepair_ComposesRepairThenNormalRules(t *testing.T) {
	sql := "SELECT p.MEDICATION FROM PRESCRIPTIONS p"
	res := RunWithErrorRepair("drug list", sql, `ORA-00904: "P"."MEDICATION": invalid identifier`, Options{RowCap: 1000, SampleRows: 1000})
	if !strings.Contains(res.SQL, "p.DRUG") {
		t.Fatalf("expected repaired column, got %q", res.SQL)
	}
	if len(res.AppliedTags) == 0 {
		t.Fatalf("expected applied tags from both the repair and normal pass")
	}
}
