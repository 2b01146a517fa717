package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_ErrorStringWithoutCause(t *testing.T) {
	err := New(KindPolicyViolation, "must include a WHERE clause")
	want := "policy_violation: must include a WHERE clause"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Unwrap() != nil {
		t.Fatalf("expected nil Unwrap for a bare New error")
	}
}

func TestWrap_ErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindDriverError, "query execution failed", cause)
	want := "driver_error: query execution failed: connection refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestIs_MatchesKindThroughWrapping(t *testing.T) {
	err := New(KindBudgetExceeded, "monthly budget exceeded")
	wrapped := fmt.Errorf("during cost check: %w", err)
	if !Is(wrapped, KindBudgetExceeded) {
		t.Fatalf("expected Is to match KindBudgetExceeded through fmt.Errorf wrapping")
	}
	if Is(wrapped, KindTimeout) {
		t.Fatalf("did not expect Is to match an unrelated kind")
	}
}

func TestIs_FalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), KindInput) {
		t.Fatalf("expected Is to return false for a non-apperr error")
	}
}
