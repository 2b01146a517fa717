// Package apperr defines the typed error kinds shared across the
// text-to-SQL and visualization pipelines. Each kind wraps an underlying
// error and carries a stable reason string; the (out-of-scope) HTTP
// boundary is expected to map Kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories from the error-handling design.
type Kind string

const (
	KindInput           Kind = "input"             // 400
	KindPolicyViolation Kind = "policy_violation"   // 403
	KindUnsupported     Kind = "unsupported"        // 400
	KindTableScope      Kind = "table_scope"        // 403
	KindTimeout         Kind = "timeout"            // 400/503
	KindDriverError     Kind = "driver_error"       // 400/503
	KindDatasetMismatch Kind = "dataset_mismatch"   // logged, not raised
	KindBudgetExceeded  Kind = "budget_exceeded"    // 429
	KindUpstreamError   Kind = "upstream_error"     // 502
)

// Error is the typed error value used across the module. Reason is the
// stable, user-facing message (e.g. the literal policy-gate strings);
// Err is the wrapped cause, if any.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Is allows errors.Is(err, apperr.KindX) style checks via a sentinel
// comparison on Kind rather than identity.
func Is(err error, kind Kind) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}
