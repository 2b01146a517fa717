package agent

import (
	"context"
	"fmt"
	"unicode"

	"github.com/tmc/langchaingo/llms"
)

// TranslateResult is the translator agent's JSON contract.
type TranslateResult struct {
	QuestionEN string `json:"question_en"`
}

const translatorSystemPrompt = `You are the Translator agent for a MIMIC-IV clinical text-to-SQL
system. Translate the given Korean (or mixed Korean/English) clinical question into clear,
unambiguous English, preserving every clinical term, identifier, and number exactly. Respond
with ONLY a JSON object: {"question_en": string}.`

// ContainsHangul reports whether s contains any Hangul syllable, jamo, or
// compatibility-jamo code point, which is the translate-trigger
// check ("if the question contains Hangul").
func ContainsHangul(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}

// Translate asks the translator agent for question's English form. Both
// forms are kept by the caller for downstream retrieval.
func Translate(ctx context.Context, llm llms.Model, question string) (TranslateResult, string, error) {
	prompt := fmt.Sprintf("%s\n\nQuestion: %s\n", translatorSystemPrompt, question)
	var out TranslateResult
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
