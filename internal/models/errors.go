package models

import (
	"errors"
	"fmt"
)

// ErrCommitInFlight signals a second concurrent commit for the same
// opportunity. The duplicate request is ignored; the first commit proceeds.
var ErrCommitInFlight = errors.New("commit already in flight for this opportunity")

// ErrNothingToCommit signals an empty pending change set. No network call is made.
var ErrNothingToCommit = errors.New("no pending changes to commit")

// ErrWorkspaceClosed signals an operation against a workspace that has been
// discarded. A commit resolving after close is dropped, never applied.
var ErrWorkspaceClosed = errors.New("workspace is closed")

// ValidationError rejects a mutation before it touches the ledger. Rule names
// which constraint failed so the caller can surface it.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Rule)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Rule, e.Detail)
}

// NewValidationError builds a ValidationError with a formatted detail message.
func NewValidationError(rule, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// EscalationRequiredError rejects a high-risk resolution attempted without
// justification text. The caller must collect justification and retry.
type EscalationRequiredError struct {
	Reason string
}

func (e *EscalationRequiredError) Error() string {
	return fmt.Sprintf("justification required: %s", e.Reason)
}

// CommitFailure wraps a remote store rejection or network failure. Local state
// is preserved unchanged so retry is lossless.
type CommitFailure struct {
	Err error
}

func (e *CommitFailure) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitFailure) Unwrap() error {
	return e.Err
}
