// Package risk implements the cheap pre-LLM question classifier used to
// pick the engineer/expert split and to flag risky questions for the
// audit log.
package risk

import (
	"regexp"
	"strings"
)

var writeKeywordsRE = regexp.MustCompile(`(?i)\b(delete|update|insert|merge|drop|alter|truncate)\b`)

// Info is the classifier's verdict for one question.
type Info struct {
	Intent     string `json:"intent"` // "read" or "risky"
	Complexity int    `json:"complexity"`
	Risk       int    `json:"risk"`
}

// Classify scores question on write-keyword presence, join-count
// complexity, length, and "all"/"everything" over-broad phrasing.
func Classify(question string) Info {
	text := strings.ToLower(question)
	risk := 0
	complexity := 0

	if writeKeywordsRE.MatchString(text) {
		risk += 5
	}
	if strings.Contains(text, "join") {
		complexity += strings.Count(text, "join")
	}
	if len(text) > 120 {
		complexity++
	}
	if strings.Contains(text, "all") || strings.Contains(text, "everything") {
		risk++
	}

	intent := "read"
	if risk >= 3 {
		intent = "risky"
	}

	return Info{Intent: intent, Complexity: complexity, Risk: risk}
}
