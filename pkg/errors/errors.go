// Package errors defines the structured error the arena returns across
// component boundaries. Run plumbing failures (state store, repositories,
// engine construction) surface as a ContextualError so callers can see where
// the failure happened; test verdicts never travel as errors.
package errors

import "fmt"

// ContextualError pins an error to the component and operation that raised
// it. Construction-time failures carry a Reason and no Cause; wrapped
// failures carry the underlying Cause.
type ContextualError struct {
	Component string
	Operation string
	Reason    string
	Cause     error
}

// New wraps cause with the component and operation that raised it.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Newf creates an error with a formatted reason and no underlying cause.
func Newf(component, operation, format string, args ...any) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Reason:    fmt.Sprintf(format, args...),
	}
}

func (e *ContextualError) Error() string {
	msg := e.Component + ": " + e.Operation
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}
