package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ErrDuplicate is returned when a write violates a unique constraint.
// Field names the violated column.
type ErrDuplicate struct {
	Field string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate value for %s", e.Field)
}

var constraintFields = map[string]string{
	"users_username_key":     "username",
	"users_display_name_key": "display_name",
	"users_email_key":        "email",
}

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if field, ok := constraintFields[pqErr.Constraint]; ok {
			return &ErrDuplicate{Field: field}
		}
		return &ErrDuplicate{Field: pqErr.Constraint}
	}

	return err
}
