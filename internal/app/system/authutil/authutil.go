// internal/app/system/authutil/authutil.go
// Package authutil provides password hashing, the password policy, and
// centralized handling of the credential fields on the signup and login forms.
package authutil

import (
	"errors"
	"strings"

	"github.com/dalemusser/stratagate/internal/app/system/normalize"
	"github.com/microcosm-cc/bluemonday"
)

// MaxUsernameLength bounds the optional display name.
const MaxUsernameLength = 64

// Form field errors. Their text is shown to the user.
var (
	ErrEmailRequired    = errors.New("Email is required.")
	ErrInvalidEmail     = errors.New("Please enter a valid email address.")
	ErrPasswordRequired = errors.New("Password is required.")
	ErrPasswordMismatch = errors.New("Passwords do not match.")
)

// CredentialInput holds the raw form values for a signup or login.
type CredentialInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	CheckConfirm    bool // signup forms carry a confirmation field
}

// Credentials holds the cleaned fields ready for the auth flow.
type Credentials struct {
	Email    string // trimmed, case preserved
	EmailKey string // lowercase form used for lookups
	Username string
	Password string
}

var usernamePolicy = bluemonday.StrictPolicy()

// IsValidEmail performs a basic email format validation: one @ with text on
// both sides and a dot inside the domain part.
func IsValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	if len(parts[0]) == 0 || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	domain := parts[1]
	dotIdx := strings.LastIndex(domain, ".")
	if dotIdx < 1 || dotIdx >= len(domain)-1 {
		return false
	}
	return true
}

// SanitizeUsername strips markup and surrounding whitespace from a display
// name and truncates it to MaxUsernameLength runes.
func SanitizeUsername(s string) string {
	clean := strings.TrimSpace(usernamePolicy.Sanitize(s))
	if r := []rune(clean); len(r) > MaxUsernameLength {
		clean = string(r[:MaxUsernameLength])
	}
	return clean
}

// ValidateAndResolve checks presence and shape of the credential fields.
// It does not apply the password policy; see ValidatePassword.
func ValidateAndResolve(in CredentialInput) (*Credentials, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if in.Password == "" {
		return nil, ErrPasswordRequired
	}
	if in.CheckConfirm && in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	return &Credentials{
		Email:    email,
		EmailKey: normalize.Email(email),
		Username: SanitizeUsername(in.Username),
		Password: in.Password,
	}, nil
}
