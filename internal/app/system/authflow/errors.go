// internal/app/system/authflow/errors.go
package authflow

import (
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/samber/oops"
)

// Error codes returned by Service.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeMalformedInput     = "MALFORMED_INPUT"
	CodeInternal           = "INTERNAL"
)

// Malformed input details, carried as "reason" alongside "field".
const (
	InputMissingFields    = "missing_fields"
	InputInvalidEmail     = "invalid_email"
	InputPasswordMismatch = "password_mismatch"
)

func errValidation(reason authutil.Reason) error {
	return oops.Code(CodeValidationFailed).
		With("reason", string(reason)).
		Errorf("password rejected: %s", reason)
}

func errMalformed(field, reason string) error {
	return oops.Code(CodeMalformedInput).
		With("field", field).
		With("reason", reason).
		Errorf("malformed input: %s", field)
}

// errInvalidCredentials is shared by unknown-user and wrong-password so the
// two cannot be told apart.
func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func errRateLimited() error {
	return oops.Code(CodeRateLimited).Errorf("too many failed login attempts")
}

func errEmailTaken() error {
	return oops.Code(CodeEmailTaken).Errorf("email already registered")
}

func errStore(operation string, err error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(err)
}

func errInternal(operation string, err error) error {
	return oops.Code(CodeInternal).
		With("operation", operation).
		Wrap(err)
}

// CodeOf returns the error code carried by err, or "" for errors that did
// not come from Service.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

// ReasonOf returns the "reason" attached to a VALIDATION_FAILED or
// MALFORMED_INPUT error, or "".
func ReasonOf(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	reason, _ := oopsErr.Context()["reason"].(string)
	return reason
}

// FieldOf returns the form field a MALFORMED_INPUT error refers to, or "".
func FieldOf(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	field, _ := oopsErr.Context()["field"].(string)
	return field
}
