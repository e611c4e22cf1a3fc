package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects an operation synchronously before any mutation:
// linking same-type or already-reconciled transactions, starting a period
// while one is open, malformed input. Surfaced to the caller with a reason.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError signals a missing referenced entity. Propagated, never retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// RecoverableExecutionError marks a single series failing during a due pass,
// typically a downstream write failure. It is captured into the pass report,
// bumps the series' failure counters and is retried on the next pass; it never
// aborts the batch.
type RecoverableExecutionError struct {
	SeriesID string
	Err      error
}

func (e *RecoverableExecutionError) Error() string {
	return fmt.Sprintf("series %s: execution failed: %v", e.SeriesID, e.Err)
}

func (e *RecoverableExecutionError) Unwrap() error {
	return e.Err
}

// IsRecoverable reports whether err is (or wraps) a RecoverableExecutionError.
func IsRecoverable(err error) bool {
	var re *RecoverableExecutionError
	return errors.As(err, &re)
}

// InvariantViolation signals a bug or data corruption: two open periods for
// one person, a negative remaining amount. The engine refuses to proceed for
// the affected entity instead of silently repairing data.
type InvariantViolation struct {
	Entity string
	ID     string
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated for %s %s: %s", e.Entity, e.ID, e.Reason)
}

// IsInvariantViolation reports whether err is (or wraps) an InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
