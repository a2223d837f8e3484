package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced user or audio file does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports malformed or missing input: absent owner reference,
// disallowed file extension, empty required field, or an attempt to mutate
// an immutable field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
