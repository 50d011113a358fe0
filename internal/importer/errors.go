package importer

import (
	"errors"
	"fmt"
)

// Sentinel errors for state-machine and resource failures. These are
// surfaced to the caller untouched so the client can present a precise
// retry/cancel choice.
var (
	// ErrNotFound means the session id is unknown, expired, or belongs to a
	// different owner. The three cases are deliberately indistinguishable.
	ErrNotFound = errors.New("upload session not found")

	// ErrConflict means a transition was attempted on a session that is not
	// in the Staged state (double confirm, confirm after cancel, etc).
	ErrConflict = errors.New("upload session is not in a staged state")

	// ErrLedgerUnavailable means the ledger append failed. The session stays
	// Staged so the caller may retry Confirm.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
)

// ValidationError rejects a file wholesale: bad extension, oversize, or a
// header missing required columns. No candidates are staged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid upload: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a wholesale file rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InternalError wraps an unexpected detector failure. The whole upload fails
// with no partial session created, since a half-built analysis would be
// misleading.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
