package retrieval

import (
	"regexp"
	"strings"
)

// SearchIntent flags which concept-tagged glossary buckets a question
// plausibly needs.
type SearchIntent struct {
	Diagnosis    bool
	Procedure    bool
	ColumnValue  bool
	LabelIntent  bool
}

var whitespaceRE = regexp.MustCompile(`\s+`)

var diagnosisTokens = []string{"diagnosis", "diagnos", "disease", "icd", "질환", "진단", "병명", "코드"}
var procedureTokens = []string{"procedure", "surgery", "surgical", "operation", "post-op", "postop", "cabg", "pci", "수술", "시술"}
var columnValueTokens = []string{"admission type", "admission_type", "status", "category", "type", "value", "gender", "유형", "종류", "구분", "값", "성별", "입원유형", "입원 유형"}
var labelIntentTokens = []string{"catheter", "dialysis", "hemodialysis", "device", "insert", "insertion", "placement", "카테터", "투석", "혈액투석", "장치", "삽입", "거치"}

func hasToken(question string, tokens []string) bool {
	lowered := strings.ToLower(question)
	compact := whitespaceRE.ReplaceAllString(lowered, "")
	for _, t := range tokens {
		if strings.Contains(lowered, t) || strings.Contains(compact, t) {
			return true
		}
	}
	return false
}

// DetectSearchIntent classifies question into the four concept buckets.
func DetectSearchIntent(question string) SearchIntent {
	return SearchIntent{
		Diagnosis:   hasToken(question, diagnosisTokens),
		Procedure:   hasToken(question, procedureTokens),
		ColumnValue: hasToken(question, columnValueTokens),
		LabelIntent: hasToken(question, labelIntentTokens),
	}
}
