// Package apperr holds the error taxonomy shared by the diary core and its callers.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced entry or user profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when an entry belongs to a different user.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransactionConflict is returned when the store gave up retrying a
	// transaction that kept conflicting with concurrent writers. Callers may retry.
	ErrTransactionConflict = errors.New("transaction conflict")
)

// ValidationError carries every failing field message, in field order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, ", ")
}

// IsRetryable reports whether err is a conflict the caller can retry as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
