// internal/app/system/authutil/policy.go
package authutil

import "unicode/utf8"

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 10

// Reason identifies why a password was rejected. ReasonNone means accepted.
type Reason string

// Rejection reasons, checked in this order.
const (
	ReasonNone           Reason = ""
	ReasonEmpty          Reason = "empty"
	ReasonTooShort       Reason = "too_short"
	ReasonMissingDigit   Reason = "missing_digit"
	ReasonMissingSpecial Reason = "missing_special_char"
)

// Message returns a sentence suitable for showing on the signup form.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonEmpty:
		return "Password is required."
	case ReasonTooShort:
		return "Password must be at least 10 characters."
	case ReasonMissingDigit:
		return "Password must contain at least one number."
	case ReasonMissingSpecial:
		return "Password must contain at least one special character."
	default:
		return "Password does not meet the requirements."
	}
}

// ParseReason maps a reason code back to a Reason. ok is false for unknown codes.
func ParseReason(code string) (Reason, bool) {
	switch r := Reason(code); r {
	case ReasonEmpty, ReasonTooShort, ReasonMissingDigit, ReasonMissingSpecial:
		return r, true
	}
	return ReasonNone, false
}

// PasswordRules returns a human-readable description of the password rules.
func PasswordRules() string {
	return "Password must be at least 10 characters and include a number and a special character."
}

// ValidatePassword checks plaintext against the password policy and returns
// the first failing rule, or ReasonNone.
//
// Special characters are anything outside letters, digits and underscore.
func ValidatePassword(plaintext string) Reason {
	if plaintext == "" {
		return ReasonEmpty
	}
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return ReasonTooShort
	}

	var hasDigit, hasSpecial bool
	for _, c := range plaintext {
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		default:
			hasSpecial = true
		}
	}
	if !hasDigit {
		return ReasonMissingDigit
	}
	if !hasSpecial {
		return ReasonMissingSpecial
	}
	return ReasonNone
}
