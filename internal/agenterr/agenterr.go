// Package agenterr defines the error kinds every runtime component agrees
// on (spec §7). Kinds are informational classifiers, not a type hierarchy:
// callers branch on Kind() via errors.As, never on concrete error types.
package agenterr

import "fmt"

// Kind classifies why an operation did not produce a normal result.
type Kind string

const (
	Timeout         Kind = "timeout"
	NotInitialized  Kind = "not_initialized"
	NotFound        Kind = "not_found"
	Skipped         Kind = "skipped"
	PreflightFailed Kind = "preflight_failed"
	NeedsUserInput  Kind = "needs_user_input"
	TransportError  Kind = "transport_error"
	ExecutionError  Kind = "execution_error"
)

// Error is the wrapped-error shape every component returns for a non-success
// outcome. Suggestion is optional operator-facing guidance; Cause is the
// underlying error, if any, and participates in errors.Unwrap.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Cause      error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, agenterr.New(agenterr.Timeout, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
