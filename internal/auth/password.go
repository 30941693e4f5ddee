package auth

import (
	"regexp"
	"unicode"

	"github.com/npezzotti/go-forum/internal/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts inputs up to this many bytes.
	maxPasswordBytes = 72
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

func HashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func VerifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}

// ValidatePassword enforces the password policy: a minimum length plus at
// least one upper case letter, lower case letter, digit and special character.
func ValidatePassword(passwd string) error {
	if len(passwd) < minPasswordLength {
		return types.NewValidationError("Password must be at least %d characters long.", minPasswordLength)
	}
	if len(passwd) > maxPasswordBytes {
		return types.NewValidationError("Password must be at most %d bytes long.", maxPasswordBytes)
	}

	var upper, lower, digit, special bool
	for _, r := range passwd {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case !upper:
		return types.NewValidationError("Password must contain at least one uppercase letter.")
	case !lower:
		return types.NewValidationError("Password must contain at least one lowercase letter.")
	case !digit:
		return types.NewValidationError("Password must contain at least one number.")
	case !special:
		return types.NewValidationError("Password must contain at least one special character.")
	}

	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return types.NewValidationError("Invalid email format.")
	}
	return nil
}

func ValidateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return types.NewValidationError("Invalid color format.")
	}
	return nil
}
