package postprocess

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	timeoutMarkers           = []string{"DPY-4024", "DPI-1067", "ORA-03156", "TIMEOUT"}
	invalidIdentifierMarkers = []string{"ORA-00904", "INVALID IDENTIFIER"}
	invalidNumberMarkers     = []string{"ORA-01722", "INVALID NUMBER"}

	errIdentRE  = regexp.MustCompile(`(?i)ORA-00904:\s*(?:"(?P<alias>[A-Za-z0-9_]+)"\.)?"(?P<column>[A-Za-z0-9_]+)"`)
	tableAliasRE = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([A-Za-z_][A-Za-z0-9_$#]*)(?:\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_$#]*))?`)
	topNIntentRE = regexp.MustCompile(`(?i)\btop\s+\d+\b|상위\s*\d+|탑\s*\d+`)
	aggShapeRE   = regexp.MustCompile(`(?i)\bGROUP\s+BY\b|\bCOUNT\s*\(|\bAVG\s*\(|\bSUM\s*\(|\bMIN\s*\(|\bMAX\s*\(`)
	rownumCapRE  = regexp.MustCompile(`(?i)\bROWNUM\s*<=\s*\d+`)
	toNumberRE   = regexp.MustCompile(`(?i)TO_NUMBER\s*\(\s*([A-Za-z_][A-Za-z0-9_$#]*\.[A-Za-z_][A-Za-z0-9_$#]*)\s*\)`)
	icdCodeColRE = regexp.MustCompile(`(?i)(\b[A-Za-z_][A-Za-z0-9_$#]*\.)ICD_CODE\b`)
)

func containsAny(text string, markers []string) bool {
	upper := strings.ToUpper(text)
	for _, m := range markers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

func findAliases(sql, tableName string) map[string]bool {
	aliases := map[string]bool{}
	target := strings.ToUpper(tableName)
	for _, m := range tableAliasRE.FindAllStringSubmatch(sql, -1) {
		if strings.ToUpper(strings.TrimSpace(m[1])) != target {
			continue
		}
		if alias := strings.TrimSpace(m[2]); alias != "" {
			aliases[alias] = true
		}
	}
	aliases[target] = true
	return aliases
}

func replaceAliasCol(sql string, aliases map[string]bool, sourceCol, targetCol string) string {
	text := sql
	for alias := range aliases {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(alias) + `\.` + regexp.QuoteMeta(sourceCol) + `\b`)
		text = re.ReplaceAllString(text, alias+"."+targetCol)
	}
	return text
}

// stripTopLevelOrderBy removes a trailing ORDER BY clause that sits at
// paren-depth 0 outside string literals, returning (text, changed).
func stripTopLevelOrderBy(sql string) (string, bool) {
	text := strings.TrimRight(strings.TrimSpace(sql), ";")
	if text == "" {
		return text, false
	}
	upper := strings.ToUpper(text)
	depth := 0
	inSingle := false
	orderPos := -1
	i := 0
	for i < len(upper) {
		ch := upper[i]
		if inSingle {
			if ch == '\'' {
				if i+1 < len(upper) && upper[i+1] == '\'' {
					i += 2
					continue
				}
				inSingle = false
			}
			i++
			continue
		}
		switch {
		case ch == '\'':
			inSingle = true
			i++
		case ch == '(':
			depth++
			i++
		case ch == ')':
			if depth > 0 {
				depth--
			}
			i++
		case depth == 0 && strings.HasPrefix(upper[i:], "ORDER BY"):
			prev := byte(' ')
			if i > 0 {
				prev = upper[i-1]
			}
			if !(isAlnum(prev) || prev == '_' || prev == '$' || prev == '#') {
				orderPos = i
			}
			i++
		default:
			i++
		}
	}
	if orderPos < 0 {
		return text, false
	}
	return strings.TrimRight(text[:orderPos], " \t\n"), true
}

// replaceWordNotPrecededByDot replaces whole-word occurrences of word with
// replacement, skipping any occurrence immediately preceded by a ".",
// mirroring a negative-lookbehind the RE2 engine can't express directly.
func replaceWordNotPrecededByDot(text, word, replacement string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	matches := re.FindAllStringIndex(text, -1)
	if matches == nil {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && text[start-1] == '.' {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(replacement)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isAlnum(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func repairInvalidIdentifier(sql, errorMessage string) (string, []string) {
	var rules []string
	text := sql
	upper := strings.ToUpper(text)
	errUpper := strings.ToUpper(errorMessage)

	if strings.Contains(errUpper, "MEDICATION") && strings.Contains(upper, "PRESCRIPTIONS") {
		aliases := findAliases(text, "PRESCRIPTIONS")
		rewritten := replaceAliasCol(text, aliases, "MEDICATION", "DRUG")
		rewritten = replaceWordNotPrecededByDot(rewritten, "MEDICATION", "DRUG")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_prescriptions_medication_to_drug")
		}
	}

	if strings.Contains(errUpper, "ORDERCATEGORYNAME") {
		rewritten := regexp.MustCompile(`(?i)\bORDERCATEGORYNAME\b`).ReplaceAllString(text, "ORDERCATEGORYDESCRIPTION")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_ordercategoryname_to_description")
		}
	}

	if (strings.Contains(errUpper, "FIRST_CAREUNIT") || strings.Contains(errUpper, "LAST_CAREUNIT")) && strings.Contains(upper, "TRANSFERS") {
		aliases := findAliases(text, "TRANSFERS")
		rewritten := replaceAliasCol(text, aliases, "FIRST_CAREUNIT", "CAREUNIT")
		rewritten = replaceAliasCol(rewritten, aliases, "LAST_CAREUNIT", "CAREUNIT")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_transfers_careunit_fix")
		}
	}

	if strings.Contains(errUpper, "LONG_TITLE") && (strings.Contains(upper, "D_ITEMS") || strings.Contains(upper, "D_LABITEMS")) {
		rewritten := regexp.MustCompile(`(?i)\bLONG_TITLE\b`).ReplaceAllString(text, "LABEL")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_long_title_to_label")
		}
	}

	if strings.Contains(errUpper, "ICD_CODE") && (strings.Contains(upper, "D_ITEMS") || strings.Contains(upper, "D_LABITEMS")) {
		rewritten := icdCodeColRE.ReplaceAllString(text, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_itemid_icd_code_mismatch_fix")
		}
	}

	if strings.Contains(errUpper, "INSERTIONS") && regexp.MustCompile(`(?i)\bAS\s+CNT\b`).MatchString(text) {
		rewritten := regexp.MustCompile(`(?i)\bINSERTIONS\b`).ReplaceAllString(text, "CNT")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_00904_projection_alias_to_cnt")
		}
	}

	if m := errIdentRE.FindStringSubmatch(errorMessage); m != nil {
		errCol := strings.ToUpper(strings.TrimSpace(m[2]))
		if errCol == "MEDICATION" && strings.Contains(upper, "PRESCRIPTIONS") && !containsRule(rules, "template_00904_prescriptions_medication_to_drug") {
			rewritten := replaceWordNotPrecededByDot(text, "MEDICATION", "DRUG")
			if rewritten != text {
				text = rewritten
				rules = append(rules, "template_00904_generic_medication_to_drug")
			}
		}
	}

	return text, rules
}

func containsRule(rules []string, rule string) bool {
	for _, r := range rules {
		if r == rule {
			return true
		}
	}
	return false
}

func repairInvalidNumber(sql, errorMessage string) (string, []string) {
	var rules []string
	text := sql
	upper := strings.ToUpper(text)

	if strings.Contains(upper, "D_ICD_DIAGNOSES") && (strings.Contains(upper, "PROCEDUREEVENTS") || strings.Contains(upper, "CHARTEVENTS")) {
		rewritten := regexp.MustCompile(`(?i)\bD_ICD_DIAGNOSES\b`).ReplaceAllString(text, "D_ITEMS")
		rewritten = icdCodeColRE.ReplaceAllString(rewritten, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_event_to_items_join_fix")
		}
	}

	if strings.Contains(upper, "D_ICD_PROCEDURES") && (strings.Contains(upper, "PROCEDUREEVENTS") || strings.Contains(upper, "CHARTEVENTS")) {
		rewritten := regexp.MustCompile(`(?i)\bD_ICD_PROCEDURES\b`).ReplaceAllString(text, "D_ITEMS")
		rewritten = icdCodeColRE.ReplaceAllString(rewritten, "${1}ITEMID")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_event_to_items_proc_fix")
		}
	}

	if strings.Contains(strings.ToUpper(errorMessage), "INVALID NUMBER") {
		rewritten := toNumberRE.ReplaceAllString(text, "$1")
		if rewritten != text {
			text = rewritten
			rules = append(rules, "template_01722_strip_unnecessary_to_number")
		}
	}

	return text, rules
}

func repairTimeout(question, sql string, rowCap int) (string, []string) {
	var rules []string
	text := strings.TrimRight(strings.TrimSpace(sql), ";")
	if text == "" {
		return text, rules
	}

	if !topNIntentRE.MatchString(question) {
		if stripped, changed := stripTopLevelOrderBy(text); changed {
			text = stripped
			rules = append(rules, "template_timeout_strip_order_by")
		}
	}

	hasAgg := aggShapeRE.MatchString(text)
	hasRownum := rownumCapRE.MatchString(text)
	if !hasAgg && !hasRownum {
		cap := rowCap
		if cap < 1000 {
			cap = 1000
		}
		if cap > 5000 {
			cap = 5000
		}
		text = "SELECT * FROM (" + text + ") WHERE ROWNUM <= " + strconv.Itoa(cap)
		rules = append(rules, "template_timeout_apply_rownum_cap:"+strconv.Itoa(cap))
	}

	return text, rules
}

// ApplySQLErrorTemplates repairs sql after an execution error, matching
// the error-template table: timeout markers strip ORDER BY and/or cap rows,
// ORA-00904 remaps known renamed columns, ORA-01722 fixes mismatched
// ICD-dimension joins.
func ApplySQLErrorTemplates(question, sql, errorMessage string, rowCap int) (string, []string) {
	text := strings.TrimSpace(sql)
	if text == "" {
		return text, nil
	}

	var rules []string
	if containsAny(errorMessage, timeoutMarkers) {
		var r []string
		text, r = repairTimeout(question, text, rowCap)
		rules = append(rules, r...)
	}
	if containsAny(errorMessage, invalidIdentifierMarkers) {
		var r []string
		text, r = repairInvalidIdentifier(text, errorMessage)
		rules = append(rules, r...)
	}
	if containsAny(errorMessage, invalidNumberMarkers) {
		var r []string
		text, r = repairInvalidNumber(text, errorMessage)
		rules = append(rules, r...)
	}
	return text, rules
}
