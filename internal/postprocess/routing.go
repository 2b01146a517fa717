package postprocess

import (
	"fmt"
	"regexp"
	"strings"
)

// tableRoute forces the correct base table when the question's keywords
// point at one event table but the draft scanned another. Routing only
// fires when the routed table is completely absent from the draft, so a
// draft that already joins it is left alone.
type tableRoute struct {
	keywords  []string
	table     string
	wrongBase []string
}

var tableRoutes = []tableRoute{
	{
		keywords:  []string{"prescription", "medication", "drug", "처방", "약물", "투약"},
		table:     "PRESCRIPTIONS",
		wrongBase: []string{"PATIENTS", "ADMISSIONS", "CHARTEVENTS"},
	},
	{
		keywords:  []string{"lab test", "lab result", "lab value", "검사 결과", "검사 수치", "랩"},
		table:     "LABEVENTS",
		wrongBase: []string{"PATIENTS", "ADMISSIONS", "CHARTEVENTS"},
	},
	{
		keywords:  []string{"microbiology", "organism", "culture", "미생물", "균", "배양"},
		table:     "MICROBIOLOGYEVENTS",
		wrongBase: []string{"LABEVENTS", "CHARTEVENTS", "PRESCRIPTIONS"},
	},
	{
		keywords:  []string{"diagnos", "진단"},
		table:     "DIAGNOSES_ICD",
		wrongBase: []string{"PROCEDURES_ICD", "CHARTEVENTS"},
	},
	{
		keywords:  []string{"procedure", "시술", "수술"},
		table:     "PROCEDURES_ICD",
		wrongBase: []string{"DIAGNOSES_ICD"},
	},
	{
		keywords:  []string{"transfer", "ward", "careunit", "병동", "이동"},
		table:     "TRANSFERS",
		wrongBase: []string{"ADMISSIONS", "ICUSTAYS"},
	},
}

// routeBaseTable swaps the FROM table when a route's keywords match the
// question, the draft's base table is one of the route's known wrong
// picks, and the routed table appears nowhere in the draft.
func routeBaseTable(question, sql string) (string, []string) {
	var rules []string
	text := sql
	qLower := strings.ToLower(question)
	m := fromTableRE.FindStringSubmatch(text)
	if m == nil {
		return text, rules
	}
	base := strings.ToUpper(m[1])
	upper := strings.ToUpper(text)
	for _, route := range tableRoutes {
		if strings.Contains(upper, route.table) {
			continue
		}
		matched := false
		for _, kw := range route.keywords {
			if strings.Contains(qLower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, wrong := range route.wrongBase {
			if base == wrong {
				re := regexp.MustCompile(`(?i)\bfrom\s+` + wrong + `\b`)
				text = re.ReplaceAllString(text, "FROM "+route.table)
				rules = append(rules, fmt.Sprintf("route:%s->%s", wrong, route.table))
				return text, rules
			}
		}
	}
	return text, rules
}

// dimensionJoin inserts the lookup-table join an event table needs when
// the draft references a dimension column (LABEL, LONG_TITLE) without
// joining the dimension table that owns it.
type dimensionJoin struct {
	eventTable string
	dimTable   string
	dimAlias   string
	dimCol     string
	joinCols   []string
}

var dimensionJoins = []dimensionJoin{
	{eventTable: "CHARTEVENTS", dimTable: "D_ITEMS", dimAlias: "di", dimCol: "LABEL", joinCols: []string{"ITEMID"}},
	{eventTable: "LABEVENTS", dimTable: "D_LABITEMS", dimAlias: "dl", dimCol: "LABEL", joinCols: []string{"ITEMID"}},
	{eventTable: "DIAGNOSES_ICD", dimTable: "D_ICD_DIAGNOSES", dimAlias: "dd", dimCol: "LONG_TITLE", joinCols: []string{"ICD_CODE", "ICD_VERSION"}},
	{eventTable: "PROCEDURES_ICD", dimTable: "D_ICD_PROCEDURES", dimAlias: "dp", dimCol: "LONG_TITLE", joinCols: []string{"ICD_CODE", "ICD_VERSION"}},
}

func ensureDimensionJoins(sql string) (string, []string) {
	var rules []string
	text := sql
	for _, dj := range dimensionJoins {
		upper := strings.ToUpper(text)
		if !strings.Contains(upper, dj.eventTable) || strings.Contains(upper, dj.dimTable) {
			continue
		}
		if !unqualifiedColRE(dj.dimCol).MatchString(text) {
			continue
		}
		m := fromTableRE.FindStringSubmatch(text)
		if m == nil || !strings.EqualFold(m[1], dj.eventTable) {
			continue
		}
		baseAlias := m[2]
		if baseAlias == "" {
			baseAlias = m[1]
		}
		switch strings.ToUpper(baseAlias) {
		case "WHERE", "JOIN", "GROUP", "ORDER":
			baseAlias = m[1]
		}
		var conds []string
		for _, col := range dj.joinCols {
			conds = append(conds, fmt.Sprintf("%s.%s = %s.%s", baseAlias, col, dj.dimAlias, col))
		}
		joinClause := fmt.Sprintf(" JOIN %s %s ON %s", dj.dimTable, dj.dimAlias, strings.Join(conds, " AND "))
		text = insertJoinBeforeWhere(text, joinClause)
		text = replaceWordNotPrecededByDot(text, dj.dimCol, dj.dimAlias+"."+dj.dimCol)
		rules = append(rules, fmt.Sprintf("join_%s_for_%s", strings.ToLower(dj.dimTable), strings.ToLower(dj.dimCol)))
	}
	return text, rules
}
