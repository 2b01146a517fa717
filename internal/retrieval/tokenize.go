package retrieval

import (
	"regexp"
	"strings"
)

// tokenPattern treats ASCII alphanumeric runs and Hangul-syllable runs as
// tokens. Splitting this way (rather than on whitespace) is what lets a
// mixed EN/KO question tokenize correctly.
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+|[\x{AC00}-\x{D7A3}]+`)

// TokenizeList lowercases text and extracts tokens in order.
func TokenizeList(text string) []string {
	lowered := strings.ToLower(text)
	return tokenPattern.FindAllString(lowered, -1)
}

// TokenizeSet returns the distinct token set.
func TokenizeSet(text string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range TokenizeList(text) {
		set[tok] = struct{}{}
	}
	return set
}

// LexicalOverlap is |query tokens ∩ doc tokens| / |query tokens|.
func LexicalOverlap(query, text string) float64 {
	qTokens := TokenizeSet(query)
	dTokens := TokenizeSet(text)
	if len(qTokens) == 0 || len(dTokens) == 0 {
		return 0
	}
	overlap := 0
	for tok := range qTokens {
		if _, ok := dTokens[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(qTokens))
}
