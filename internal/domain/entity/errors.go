package entity

import "errors"

// Sentinel errors, checked with errors.Is
var (
	// ErrInvalidArgument marks a missing or malformed input
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreFailure marks a failed operation of the underlying store
	ErrStoreFailure = errors.New("store operation failed")
)

// ValidationError names the field that violated a constraint
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match ErrInvalidArgument
func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
