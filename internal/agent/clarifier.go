package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// ConversationTurn is one message in the multi-turn conversation the
// clarifier and translator agents consume.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ClarifyResult is the clarifier agent's JSON contract.
type ClarifyResult struct {
	NeedsClarification bool   `json:"needs_clarification"`
	ClarifyingQuestion string `json:"clarifying_question"`
}

const clarifierSystemPrompt = `You are the Clarifier agent for a MIMIC-IV clinical text-to-SQL system.
Given the conversation so far and the latest question, decide whether the question is ambiguous
enough that it cannot be translated into a single SQL query without more information (e.g. an
undefined cohort, an ambiguous time window, an unspecified metric). Respond with ONLY a JSON
object: {"needs_clarification": boolean, "clarifying_question": string}. Leave
clarifying_question empty when needs_clarification is false.`

func renderConversation(turns []ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return b.String()
}

// Clarify asks the clarifier agent whether question needs a follow-up
// before it can be engineered into SQL. The inference orchestrator has no
// clarify step and does not call it.
func Clarify(ctx context.Context, llm llms.Model, conversation []ConversationTurn, question string) (ClarifyResult, string, error) {
	prompt := fmt.Sprintf("%s\n\nConversation so far:\n%s\nLatest question: %s\n",
		clarifierSystemPrompt, renderConversation(conversation), question)
	var out ClarifyResult
	raw, err := CallJSON(ctx, llm, prompt, &out)
	return out, raw, err
}
