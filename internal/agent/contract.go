// Package agent implements the six LLM agents of the orchestration
// pipeline (Engineer, Expert, Planner, Clarifier, Translator, Repair).
// Every agent is a single llms.Model.Call invocation returning a
// fixed-key JSON payload pulled out of an otherwise free-form response;
// there is no tool-calling ReAct loop here, and no provider-side
// structured-output mode — the agents are one-shot JSON contracts.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"reactsql-mimic/internal/apperr"
)

// Call invokes llm with prompt and returns the raw response text, which
// the caller can also use for its cost accounting.
func Call(ctx context.Context, llm llms.Model, prompt string) (string, error) {
	resp, err := llm.Call(ctx, prompt)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamError, "LLM call failed", err)
	}
	return resp, nil
}

// ExtractJSON pulls the JSON object out of an otherwise free-form model
// response: first try the whole trimmed response, then fall back to
// matching from the first '{' to the last '}', covering agents that wrap
// JSON in prose or a markdown fence.
func ExtractJSON(response string) (map[string]any, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return nil, apperr.New(apperr.KindUpstreamError, "no JSON object found in LLM response")
	}
	candidate := text[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamError, "could not parse JSON object from LLM response", err)
	}
	return out, nil
}

// CallJSON runs Call then ExtractJSON, decoding the result into out (a
// pointer to a fixed-key struct). Any deviation from the contract — a
// call failure or an unparseable/missing-field response — is an
// UpstreamError.
func CallJSON(ctx context.Context, llm llms.Model, prompt string, out any) (raw string, err error) {
	raw, err = Call(ctx, llm, prompt)
	if err != nil {
		return raw, err
	}
	obj, err := ExtractJSON(raw)
	if err != nil {
		return raw, err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return raw, apperr.Wrap(apperr.KindUpstreamError, "could not re-marshal LLM JSON object", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return raw, apperr.Wrap(apperr.KindUpstreamError, "LLM JSON object missing expected fields", err)
	}
	return raw, nil
}
