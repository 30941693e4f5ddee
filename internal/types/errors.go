package types

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when a request carries no valid logged-in session.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrInvalidCredentials is returned when a username/password pair does not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("not found")
)

// ValidationError reports malformed user input. Message is safe to show to users.
type ValidationError struct {
	Message string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConflictError reports a uniqueness violation on a user field.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	switch e.Field {
	case "display_name":
		return "Display name already in use."
	case "email":
		return "Email already in use."
	case "username":
		return "Username already in use."
	default:
		return "Value already in use."
	}
}

// StoreError wraps a persistence failure. Its message is never shown to users.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
