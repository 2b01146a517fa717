package cohort

import (
	"fmt"
	"strconv"
	"strings"

	"reactsql-mimic/internal/metadata"
)

// SQLBundle is the named set of SQL strings compiled from Params.
type SQLBundle map[string]string

// cohortCTE builds the shared WITH admissions_sample / cohort clause,
// identical in shape across every query in the bundle.
func cohortCTE(p Params) string {
	gender := strings.ToUpper(p.Gender)
	genderClause := ""
	if gender == "M" || gender == "F" {
		genderClause = fmt.Sprintf("AND UPPER(TRIM(p.GENDER)) = '%s' ", gender)
	}
	icuClause := ""
	if p.ICUOnly {
		icuClause = "AND EXISTS (SELECT 1 FROM ICUSTAYS i WHERE i.HADM_ID = a.HADM_ID) "
	}
	var entryClause string
	switch p.EntryFilter {
	case "er":
		entryClause = "AND (UPPER(NVL(a.ADMISSION_LOCATION, '')) LIKE '%EMERGENCY%' " +
			"OR UPPER(NVL(a.ADMISSION_LOCATION, '')) LIKE '%ER%' " +
			"OR UPPER(NVL(a.ADMISSION_LOCATION, '')) LIKE '%ED%') "
	case "non_er":
		entryClause = "AND (UPPER(NVL(a.ADMISSION_LOCATION, '')) NOT LIKE '%EMERGENCY%' " +
			"AND UPPER(NVL(a.ADMISSION_LOCATION, '')) NOT LIKE '%ER%' " +
			"AND UPPER(NVL(a.ADMISSION_LOCATION, '')) NOT LIKE '%ED%') "
	}
	var outcomeClause string
	switch p.OutcomeFilter {
	case "expired":
		outcomeClause = "AND a.HOSPITAL_EXPIRE_FLAG = 1 "
	case "survived":
		outcomeClause = "AND NVL(a.HOSPITAL_EXPIRE_FLAG, 0) = 0 "
	}
	sampleClause := ""
	if rows := SampleRows(); rows > 0 {
		sampleClause = fmt.Sprintf("AND ROWNUM <= %d ", rows)
	}

	return "WITH admissions_sample AS ( " +
		"SELECT b.HADM_ID, b.SUBJECT_ID, b.ADMITTIME, b.DISCHTIME, b.HOSPITAL_EXPIRE_FLAG, b.ADMISSION_LOCATION, " +
		"LEAD(b.ADMITTIME) OVER (PARTITION BY b.SUBJECT_ID ORDER BY b.ADMITTIME) AS NEXT_ADMITTIME " +
		"FROM ( " +
		"SELECT a.HADM_ID, a.SUBJECT_ID, a.ADMITTIME, a.DISCHTIME, a.HOSPITAL_EXPIRE_FLAG, a.ADMISSION_LOCATION " +
		"FROM ADMISSIONS a " +
		"WHERE a.ADMITTIME IS NOT NULL " +
		"AND a.DISCHTIME IS NOT NULL " +
		sampleClause +
		") b " +
		"), cohort AS ( " +
		"SELECT a.HADM_ID, a.SUBJECT_ID, a.ADMITTIME, a.DISCHTIME, a.HOSPITAL_EXPIRE_FLAG, a.ADMISSION_LOCATION, " +
		"a.NEXT_ADMITTIME, UPPER(TRIM(p.GENDER)) AS GENDER, p.ANCHOR_AGE " +
		"FROM admissions_sample a " +
		"JOIN PATIENTS p ON p.SUBJECT_ID = a.SUBJECT_ID " +
		"WHERE p.ANCHOR_AGE IS NOT NULL " +
		fmt.Sprintf("AND p.ANCHOR_AGE >= %d ", p.AgeThreshold) +
		fmt.Sprintf("AND (CAST(a.DISCHTIME AS DATE) - CAST(a.ADMITTIME AS DATE)) >= %d ", p.LOSThreshold) +
		genderClause + icuClause + entryClause + outcomeClause +
		") "
}

func icdPrefixCondition(dxExpr string, prefixes []string) string {
	parts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s LIKE '%s%%'", dxExpr, p))
	}
	if len(parts) == 0 {
		return "1 = 0"
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type resolvedComorbidity struct {
	GroupKey, GroupLabel, FlagCol, ConditionSQL string
	SortOrder                                   int
}

func resolveComorbiditySpecs(dxExpr string, store *metadata.ComorbidityStore, diagMap *metadata.DiagnosisMapStore) []resolvedComorbidity {
	var out []resolvedComorbidity
	for _, base := range store.Specs() {
		var mapped []string
		if diagMap != nil {
			mapped = diagMap.MapPrefixesForTerms(base.MapTerms)
		}
		prefixes := metadata.ResolvePrefixes(base, mapped)
		if len(prefixes) == 0 {
			continue
		}
		out = append(out, resolvedComorbidity{
			GroupKey:     base.GroupKey,
			GroupLabel:   base.GroupLabel,
			FlagCol:      base.FlagCol,
			SortOrder:    base.SortOrder,
			ConditionSQL: icdPrefixCondition(dxExpr, prefixes),
		})
	}
	return out
}

// BuildBundle compiles Params (clamped) into the named SQL strings,
// resolving comorbidity subgroup SQL against comorbidityStore/diagMap (may
// be nil, in which case the comorbidity section is an empty typed select).
func BuildBundle(p Params, comorbidityStore *metadata.ComorbidityStore, diagMap *metadata.DiagnosisMapStore) SQLBundle {
	p = p.Clamp()
	cte := cohortCTE(p)
	losExpr := "(CAST(c.DISCHTIME AS DATE) - CAST(c.ADMITTIME AS DATE))"
	readmit30 := fmt.Sprintf("CASE WHEN c.NEXT_ADMITTIME IS NOT NULL AND c.NEXT_ADMITTIME > c.DISCHTIME AND c.NEXT_ADMITTIME <= c.DISCHTIME + %d THEN 1 ELSE 0 END", p.ReadmitDays)
	readmit7 := "CASE WHEN c.NEXT_ADMITTIME IS NOT NULL AND c.NEXT_ADMITTIME > c.DISCHTIME AND c.NEXT_ADMITTIME <= c.DISCHTIME + 7 THEN 1 ELSE 0 END"
	death := "CASE WHEN c.HOSPITAL_EXPIRE_FLAG = 1 THEN 1 ELSE 0 END"
	longStay := fmt.Sprintf("CASE WHEN %s >= 14 THEN 1 ELSE 0 END", losExpr)
	icu := "CASE WHEN icu.HADM_ID IS NOT NULL THEN 1 ELSE 0 END"
	er := "CASE WHEN UPPER(NVL(c.ADMISSION_LOCATION, '')) LIKE '%EMERGENCY%' OR UPPER(NVL(c.ADMISSION_LOCATION, '')) LIKE '%ER%' OR UPPER(NVL(c.ADMISSION_LOCATION, '')) LIKE '%ED%' THEN 1 ELSE 0 END"

	ageBandKey := "CASE WHEN c.ANCHOR_AGE < 40 THEN '18_39' WHEN c.ANCHOR_AGE < 50 THEN '40_49' WHEN c.ANCHOR_AGE < 60 THEN '50_59' WHEN c.ANCHOR_AGE < 70 THEN '60_69' WHEN c.ANCHOR_AGE < 80 THEN '70_79' ELSE '80_PLUS' END"
	ageBandLabel := "CASE WHEN c.ANCHOR_AGE < 40 THEN '18-39세' WHEN c.ANCHOR_AGE < 50 THEN '40-49세' WHEN c.ANCHOR_AGE < 60 THEN '50-59세' WHEN c.ANCHOR_AGE < 70 THEN '60-69세' WHEN c.ANCHOR_AGE < 80 THEN '70-79세' ELSE '80세 이상' END"
	genderKey := "CASE WHEN c.GENDER = 'M' THEN 'M' WHEN c.GENDER = 'F' THEN 'F' ELSE 'UNKNOWN' END"
	genderLabel := "CASE WHEN c.GENDER = 'M' THEN '남성' WHEN c.GENDER = 'F' THEN '여성' ELSE '미상' END"

	subgroupCols := "COUNT(*) AS ADMISSION_CNT, " +
		"COUNT(DISTINCT c.SUBJECT_ID) AS PATIENT_CNT, " +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS READMIT_RATE_PCT, ", readmit30) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS MORTALITY_RATE_PCT, ", death) +
		fmt.Sprintf("ROUND(AVG(%s), 2) AS AVG_LOS_DAYS ", losExpr)

	ageSQL := cte + "SELECT " + ageBandKey + " AS GROUP_KEY, " + ageBandLabel + " AS GROUP_LABEL, " + subgroupCols +
		"FROM cohort c GROUP BY " + ageBandKey + ", " + ageBandLabel + " ORDER BY GROUP_KEY"

	genderSQL := cte + "SELECT " + genderKey + " AS GROUP_KEY, " + genderLabel + " AS GROUP_LABEL, " + subgroupCols +
		"FROM cohort c GROUP BY " + genderKey + ", " + genderLabel +
		" ORDER BY CASE WHEN GROUP_KEY = 'M' THEN 1 WHEN GROUP_KEY = 'F' THEN 2 ELSE 3 END"

	dxExpr := "UPPER(REPLACE(NVL(d.ICD_CODE, ''), '.', ''))"
	var comorbiditySQL string
	var specs []resolvedComorbidity
	if comorbidityStore != nil {
		specs = resolveComorbiditySpecs(dxExpr, comorbidityStore, diagMap)
	}
	if len(specs) > 0 {
		flagCols := make([]string, 0, len(specs))
		for _, s := range specs {
			flagCols = append(flagCols, fmt.Sprintf("MAX(CASE WHEN %s THEN 1 ELSE 0 END) AS %s", s.ConditionSQL, s.FlagCol))
		}
		dxFlagsCTE := ", dx_flags AS ( SELECT d.HADM_ID, " + strings.Join(flagCols, ", ") +
			" FROM DIAGNOSES_ICD d JOIN (SELECT DISTINCT HADM_ID FROM cohort) ch ON ch.HADM_ID = d.HADM_ID GROUP BY d.HADM_ID ) "

		unions := make([]string, 0, len(specs))
		for _, s := range specs {
			unions = append(unions, fmt.Sprintf(
				"SELECT '%s' AS GROUP_KEY, '%s' AS GROUP_LABEL, COUNT(*) AS ADMISSION_CNT, "+
					"COUNT(DISTINCT c.SUBJECT_ID) AS PATIENT_CNT, ROUND(100 * AVG(%s), 2) AS READMIT_RATE_PCT, "+
					"ROUND(100 * AVG(%s), 2) AS MORTALITY_RATE_PCT, ROUND(AVG(%s), 2) AS AVG_LOS_DAYS, %d AS SORT_ORD "+
					"FROM cohort c JOIN dx_flags f ON f.HADM_ID = c.HADM_ID WHERE f.%s = 1",
				s.GroupKey, s.GroupLabel, readmit30, death, losExpr, s.SortOrder, s.FlagCol,
			))
		}
		comorbiditySQL = cte + dxFlagsCTE +
			"SELECT GROUP_KEY, GROUP_LABEL, ADMISSION_CNT, PATIENT_CNT, READMIT_RATE_PCT, MORTALITY_RATE_PCT, AVG_LOS_DAYS FROM (" +
			strings.Join(unions, " UNION ALL ") + ") ORDER BY SORT_ORD"
	} else {
		comorbiditySQL = cte + "SELECT CAST(NULL AS VARCHAR2(64)) AS GROUP_KEY, CAST(NULL AS VARCHAR2(128)) AS GROUP_LABEL, " +
			"CAST(NULL AS NUMBER) AS ADMISSION_CNT, CAST(NULL AS NUMBER) AS PATIENT_CNT, CAST(NULL AS NUMBER) AS READMIT_RATE_PCT, " +
			"CAST(NULL AS NUMBER) AS MORTALITY_RATE_PCT, CAST(NULL AS NUMBER) AS AVG_LOS_DAYS FROM cohort c WHERE 1 = 0"
	}

	metricsSQL := cte + "SELECT COUNT(DISTINCT c.SUBJECT_ID) AS PATIENT_CNT, " +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS READMIT_RATE_PCT, ", readmit30) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS MORTALITY_RATE_PCT, ", death) +
		fmt.Sprintf("ROUND(AVG(%s), 2) AS AVG_LOS_DAYS, ", losExpr) +
		fmt.Sprintf("ROUND(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY %s), 2) AS MEDIAN_LOS_DAYS, ", losExpr) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS READMIT_7D_RATE_PCT, ", readmit7) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS LONG_STAY_RATE_PCT, ", longStay) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS ICU_ADMISSION_RATE_PCT, ", icu) +
		fmt.Sprintf("ROUND(100 * AVG(%s), 2) AS ER_ADMISSION_RATE_PCT, ", er) +
		"COUNT(*) AS ADMISSION_CNT, " +
		fmt.Sprintf("SUM(%s) AS READMIT_30_CNT, ", readmit30) +
		fmt.Sprintf("SUM(%s) AS DEATH_CNT, ", death) +
		fmt.Sprintf("ROUND(NVL(STDDEV(%s), 0), 6) AS LOS_STDDEV_DAYS, ", losExpr) +
		fmt.Sprintf("SUM(%s) AS ICU_ADMISSION_CNT, ", icu) +
		fmt.Sprintf("SUM(%s) AS ER_ADMISSION_CNT, ", er) +
		fmt.Sprintf("SUM(%s) AS READMIT_7_CNT, ", readmit7) +
		fmt.Sprintf("SUM(%s) AS LONG_STAY_CNT ", longStay) +
		"FROM cohort c LEFT JOIN (SELECT DISTINCT HADM_ID FROM ICUSTAYS) icu ON icu.HADM_ID = c.HADM_ID"

	lifeTableSQL := cte + "SELECT FLOOR(CAST(c.DISCHTIME AS DATE) - CAST(c.ADMITTIME AS DATE)) AS LOS_DAY, " +
		"SUM(CASE WHEN c.HOSPITAL_EXPIRE_FLAG = 1 THEN 1 ELSE 0 END) AS EVENT_CNT, " +
		"SUM(CASE WHEN c.HOSPITAL_EXPIRE_FLAG = 1 THEN 0 ELSE 1 END) AS CENSOR_CNT " +
		"FROM cohort c WHERE c.ADMITTIME IS NOT NULL AND c.DISCHTIME IS NOT NULL " +
		"AND (CAST(c.DISCHTIME AS DATE) - CAST(c.ADMITTIME AS DATE)) >= 0 " +
		"GROUP BY FLOOR(CAST(c.DISCHTIME AS DATE) - CAST(c.ADMITTIME AS DATE)) ORDER BY LOS_DAY"

	return SQLBundle{
		"cohort_cte":               cte,
		"metrics_sql":              metricsSQL,
		"age_subgroup_sql":         ageSQL,
		"gender_subgroup_sql":      genderSQL,
		"comorbidity_subgroup_sql": comorbiditySQL,
		"life_table_sql":           lifeTableSQL,
		"patient_count_sql":        cte + "SELECT COUNT(DISTINCT c.SUBJECT_ID) AS PATIENT_CNT FROM cohort c",
		"readmission_rate_sql": cte + "SELECT ROUND(100 * AVG(" + readmit30 + "), 2) AS READMIT_RATE_PCT FROM cohort c",
		"mortality_rate_sql":   cte + "SELECT ROUND(100 * AVG(" + death + "), 2) AS MORTALITY_RATE_PCT FROM cohort c",
		"avg_los_sql":          cte + "SELECT ROUND(AVG(" + losExpr + "), 2) AS AVG_LOS_DAYS FROM cohort c",
		"median_los_sql":       cte + "SELECT ROUND(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY " + losExpr + "), 2) AS MEDIAN_LOS_DAYS FROM cohort c",
		"readmission_7d_rate_sql": cte + "SELECT ROUND(100 * AVG(" + readmit7 + "), 2) AS READMIT_7D_RATE_PCT FROM cohort c",
		"long_stay_rate_sql":      cte + "SELECT ROUND(100 * AVG(" + longStay + "), 2) AS LONG_STAY_RATE_PCT FROM cohort c",
		"icu_admission_rate_sql":  cte + "SELECT ROUND(100 * AVG(" + icu + "), 2) AS ICU_ADMISSION_RATE_PCT FROM cohort c",
		"er_admission_rate_sql":   cte + "SELECT ROUND(100 * AVG(" + er + "), 2) AS ER_ADMISSION_RATE_PCT FROM cohort c",
	}
}

// ParamsCacheKey returns a stable string key for the clamped Params, one
// '|'-separated segment per field.
func ParamsCacheKey(p Params) string {
	p = p.Clamp()
	return strconv.Itoa(p.ReadmitDays) + "|" + strconv.Itoa(p.AgeThreshold) + "|" + strconv.Itoa(p.LOSThreshold) +
		"|" + p.Gender + "|" + strconv.FormatBool(p.ICUOnly) + "|" + p.EntryFilter + "|" + p.OutcomeFilter
}
