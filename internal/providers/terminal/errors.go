package terminal

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrExecutableNotFound = errors.New("shell executable not found")
	ErrWorkDirUnavailable = errors.New("working directory unavailable")
	ErrSpawnFailed        = errors.New("failed to spawn shell")
	ErrTooManySessions    = errors.New("session limit reached")
	ErrNotReady           = errors.New("shell did not become ready")
	ErrWriteFailed        = errors.New("shell input is not writable")
	ErrProcessExited      = errors.New("shell process exited")
	ErrSessionClosed      = errors.New("session terminated")
	ErrCommandTimeout     = errors.New("command timed out")
	ErrCommandCanceled    = errors.New("command abandoned by caller")
)

// ErrorKind classifies a session failure.
type ErrorKind string

const (
	KindCreation     ErrorKind = "creation"
	KindReadiness    ErrorKind = "readiness"
	KindWrite        ErrorKind = "write"
	KindProcessDeath ErrorKind = "process_death"
	KindTerminated   ErrorKind = "terminated"
	KindTimeout      ErrorKind = "timeout"
	KindCanceled     ErrorKind = "canceled"
)

// SessionError is reported to every pending command affected by a failure.
type SessionError struct {
	Kind      ErrorKind
	SessionID string
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s: %v", e.SessionID, e.Kind, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func newSessionError(kind ErrorKind, sessionID string, err error) *SessionError {
	return &SessionError{Kind: kind, SessionID: sessionID, Err: err}
}

// contextError classifies a wait that ended because ctx did. Only an expired
// deadline is a timeout.
func contextError(ctx context.Context, sessionID string) *SessionError {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return newSessionError(KindTimeout, sessionID, fmt.Errorf("%w: %w", ErrCommandTimeout, err))
	}
	return newSessionError(KindCanceled, sessionID, fmt.Errorf("%w: %w", ErrCommandCanceled, err))
}

// KindOf returns the failure kind carried by err, or "" if err is not a SessionError.
func KindOf(err error) ErrorKind {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
