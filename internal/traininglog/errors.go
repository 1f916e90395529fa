package traininglog

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("training entry not found")
	ErrForbidden         = errors.New("training entry belongs to another user")
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrConflict is returned by stores when a transaction lost a race with a
	// concurrent one and can be retried as a whole.
	ErrConflict = errors.New("transaction conflict")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvariantViolationError signals that a pair with entries does not have
// exactly one entry flagged as PR. It never reaches API callers; the service repairs the pair.
type InvariantViolationError struct {
	Pair    Pair
	Holders int
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("pr invariant violated for [%s]: %d holders", e.Pair, e.Holders)
}

type transactionError struct {
	cause error
}

func (e *transactionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTransactionFailed, e.cause)
}

func (e *transactionError) Unwrap() []error {
	return []error{ErrTransactionFailed, e.cause}
}

func newTransactionError(cause error) error {
	return &transactionError{cause: cause}
}

// isCallerError reports errors that describe the request, not the store.
func isCallerError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden)
}
