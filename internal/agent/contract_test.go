package agent

import (
	"context"
	"errors"
	"testing"

	"reactsql-mimic/internal/apperr"
)

func TestCall_ReturnsRawResponse(t *testing.T) {
	llm := &fakeLLM{response: `{"ok": true}`}
	got, err := Call(context.Background(), llm, "prompt")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != `{"ok": true}` {
		t.Fatalf("Call = %q", got)
	}
}

func TestCall_WrapsUnderlyingErrorAsUpstreamError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("connection refused")}
	_, err := Call(context.Background(), llm, "prompt")
	if !apperr.Is(err, apperr.KindUpstreamError) {
		t.Fatalf("expected an UpstreamError, got %v", err)
	}
}

func TestExtractJSON_PlainObject(t *testing.T) {
	out, err := ExtractJSON(`{"final_sql": "SELECT 1"}`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out["final_sql"] != "SELECT 1" {
		t.Fatalf("unexpected object: %v", out)
	}
}

func TestExtractJSON_StripsMarkdownFence(t *testing.T) {
	out, err := ExtractJSON("```json\n{\"final_sql\": \"SELECT 1\"}\n```")
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out["final_sql"] != "SELECT 1" {
		t.Fatalf("unexpected object: %v", out)
	}
}

func TestExtractJSON_ObjectSurroundedByProse(t *testing.T) {
	out, err := ExtractJSON("Sure, here is the SQL:\n{\"final_sql\": \"SELECT 1\"}\nLet me know if you need more.")
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if out["final_sql"] != "SELECT 1" {
		t.Fatalf("unexpected object: %v", out)
	}
}

func TestExtractJSON_NoObjectIsUpstreamError(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that.")
	if !apperr.Is(err, apperr.KindUpstreamError) {
		t.Fatalf("expected an UpstreamError, got %v", err)
	}
}

func TestExtractJSON_MalformedObjectIsUpstreamError(t *testing.T) {
	_, err := ExtractJSON("{final_sql: SELECT 1}")
	if !apperr.Is(err, apperr.KindUpstreamError) {
		t.Fatalf("expected an UpstreamError, got %v", err)
	}
}

func TestCallJSON_DecodesIntoTypedStruct(t *testing.T) {
	llm := &fakeLLM{response: `{"final_sql": "SELECT 1", "used_tables": ["admissions"], "risk_score": 0.2}`}
	var out SQLDraft
	raw, err := CallJSON(context.Background(), llm, "prompt", &out)
	if err != nil {
		t.Fatalf("CallJSON: %v", err)
	}
	if out.FinalSQL != "SELECT 1" || len(out.UsedTables) != 1 || out.RiskScore != 0.2 {
		t.Fatalf("unexpected decode: %+v", out)
	}
	if raw != llm.response {
		t.Fatalf("expected raw response preserved, got %q", raw)
	}
}

func TestCallJSON_PropagatesCallFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("timeout")}
	var out SQLDraft
	_, err := CallJSON(context.Background(), llm, "prompt", &out)
	if !apperr.Is(err, apperr.KindUpstreamError) {
		t.Fatalf("expected an UpstreamError, got %v", err)
	}
}
