package auth

import (
	"strings"
	"testing"

	"github.com/npezzotti/go-forum/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Holliday123!")
	require.NoError(t, err)

	assert.NotEqual(t, "Holliday123!", hash, "expected password to be hashed")
	assert.True(t, VerifyPassword(hash, "Holliday123!"))
	assert.False(t, VerifyPassword(hash, "holliday123!"))
	assert.False(t, VerifyPassword("not-a-hash", "Holliday123!"))
}

func TestValidatePassword(t *testing.T) {
	tcases := []struct {
		name   string
		passwd string
		valid  bool
	}{
		{name: "valid", passwd: "Holliday123!", valid: true},
		{name: "too short", passwd: "Ho1!", valid: false},
		{name: "no uppercase", passwd: "holliday123!", valid: false},
		{name: "no lowercase", passwd: "HOLLIDAY123!", valid: false},
		{name: "no digit", passwd: "Holliday!!!", valid: false},
		{name: "no special", passwd: "Holliday123", valid: false},
		{name: "symbol counts as special", passwd: "Holliday123$", valid: true},
		{name: "longest bcrypt accepts", passwd: "Aa1!" + strings.Repeat("x", 68), valid: true},
		{name: "longer than bcrypt accepts", passwd: "Aa1!" + strings.Repeat("x", 80), valid: false},
		{name: "multibyte runes count as bytes", passwd: "Aa1!" + strings.Repeat("é", 35), valid: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.passwd)
			if tc.valid {
				assert.NoError(t, err)
				return
			}

			var valErr *types.ValidationError
			assert.ErrorAs(t, err, &valErr)
			assert.NotEmpty(t, valErr.Message)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("doc@tombstone.com"))
	assert.Error(t, ValidateEmail("doc@tombstone"))
	assert.Error(t, ValidateEmail("doc tombstone@x.com"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateColor(t *testing.T) {
	assert.NoError(t, ValidateColor("#8B4513"))
	assert.NoError(t, ValidateColor("#ffffff"))
	assert.Error(t, ValidateColor("8B4513"))
	assert.Error(t, ValidateColor("#8B451"))
	assert.Error(t, ValidateColor("#GGGGGG"))
}
