package types

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreError(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewStoreError("create user", sql.ErrConnDone))

	var storeErr *StoreError
	assert.True(t, errors.As(err, &storeErr), "expected StoreError in chain")
	assert.Equal(t, "create user", storeErr.Op)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Equal(t, "handler: create user: sql: connection is already closed", err.Error())
}

func TestConflictError(t *testing.T) {
	tcases := []struct {
		field    string
		expected string
	}{
		{"display_name", "Display name already in use."},
		{"email", "Email already in use."},
		{"username", "Username already in use."},
		{"other", "Value already in use."},
	}

	for _, tc := range tcases {
		t.Run(tc.field, func(t *testing.T) {
			assert.Equal(t, tc.expected, (&ConflictError{Field: tc.field}).Error())
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("%s is required", "Display name")
	assert.Equal(t, "Display name is required", err.Error())
}
