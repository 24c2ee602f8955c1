package models

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed or insufficient signals. Not retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// ConcurrencyConflict signals lock contention on a check-then-create path.
// Callers retry once the lock releases.
type ConcurrencyConflict struct {
	Key string
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrent operation in progress for key %q", e.Key)
}

// MergeConflict means a merge participant is not canonical. It carries the
// true canonical id so the caller can retarget without digging through logs.
type MergeConflict struct {
	PersonID    string
	CanonicalID string
}

func (e *MergeConflict) Error() string {
	return fmt.Sprintf("person %s is not canonical; canonical person is %s", e.PersonID, e.CanonicalID)
}

// TransientFailure marks dependency trouble. The enclosing job fails and is
// eligible for backoff retry.
type TransientFailure struct {
	Op  string
	Err error
}

func (e *TransientFailure) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientFailure) Unwrap() error {
	return e.Err
}

// InvariantViolation is fatal state corruption, such as a merge-pointer cycle.
// The operation aborts; nothing is guessed at.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Detail)
}

func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

func IsConcurrencyConflict(err error) bool {
	var target *ConcurrencyConflict
	return errors.As(err, &target)
}

func IsMergeConflict(err error) bool {
	var mc *MergeConflict
	return errors.As(err, &mc)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTransient(err error) bool {
	var tf *TransientFailure
	return errors.As(err, &tf)
}
