package logging

import (
	"errors"
	"fmt"
)

// OperationError records which dashboard step failed (session load, session
// save, a Redis command) and for which browser session. Relay failures never
// take this form: they become error documents shown to the operator.
type OperationError struct {
	Operation string
	SessionID string
	Err       error
}

func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.SessionID == "" {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s (session_id=%s): %v", e.Operation, e.SessionID, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError tags err with the failing step; a nil err stays nil.
func NewOperationError(operation, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, SessionID: sessionID, Err: err}
}

// EnsureOperationError tags err unless a lower layer already did, so the
// innermost step names the failure and messages do not repeat the session.
func EnsureOperationError(operation, sessionID string, err error) error {
	var opErr *OperationError
	if err == nil || errors.As(err, &opErr) {
		return err
	}
	return NewOperationError(operation, sessionID, err)
}
