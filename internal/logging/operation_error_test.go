package logging

import (
	"context"
	"errors"
	"testing"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("session.save", "abc", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorMessageAndUnwrap(t *testing.T) {
	err := NewOperationError("session.load", "sess-1", context.DeadlineExceeded)

	if got, want := err.Error(), "session.load (session_id=sess-1): context deadline exceeded"; got != want {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected errors.Is to see the wrapped error")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) || opErr.Operation != "session.load" {
		t.Fatalf("expected OperationError, got %T", err)
	}
}

func TestOperationErrorWithoutSession(t *testing.T) {
	err := NewOperationError("template.render", "", errors.New("boom"))
	if got := err.Error(); got != "template.render: boom" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestNewLoggerAcceptsUnknownLevel(t *testing.T) {
	logger, err := NewLogger("chatty")
	if err != nil {
		t.Fatalf("expected logger, got error: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatal("expected debug to be disabled for fallback level")
	}
}

func TestEnsureOperationErrorKeepsInnermostStep(t *testing.T) {
	inner := NewOperationError("session.load", "sess-1", errors.New("connection refused"))

	err := EnsureOperationError("usecase.load_session", "sess-1", inner)
	if err != inner {
		t.Fatalf("expected the original error, got %v", err)
	}
	if got := err.Error(); got != "session.load (session_id=sess-1): connection refused" {
		t.Fatalf("unexpected message: %q", got)
	}

	bare := EnsureOperationError("usecase.load_session", "sess-1", errors.New("boom"))
	var opErr *OperationError
	if !errors.As(bare, &opErr) || opErr.Operation != "usecase.load_session" {
		t.Fatalf("expected bare error to be tagged, got %v", bare)
	}
	if EnsureOperationError("x", "", nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}
