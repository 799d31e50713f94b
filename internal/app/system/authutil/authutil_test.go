package authutil

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"a@b.co", true},
		{"first.last@example.com", true},
		{"", false},
		{"no-at.example.com", false},
		{"@example.com", false},
		{"a@b", false},
		{"a@.com", false},
		{"a@b.", false},
		{"a@@b.com", false},
		{"a b@c.com", false},
	}
	for _, tt := range tests {
		if got := IsValidEmail(tt.email); got != tt.want {
			t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestValidateAndResolve(t *testing.T) {
	tests := []struct {
		name    string
		in      CredentialInput
		wantErr error
	}{
		{"missing email", CredentialInput{Password: "x"}, ErrEmailRequired},
		{"blank email", CredentialInput{Email: "   ", Password: "x"}, ErrEmailRequired},
		{"bad email", CredentialInput{Email: "nope", Password: "x"}, ErrInvalidEmail},
		{"missing password", CredentialInput{Email: "a@b.co"}, ErrPasswordRequired},
		{"mismatch", CredentialInput{Email: "a@b.co", Password: "x", ConfirmPassword: "y", CheckConfirm: true}, ErrPasswordMismatch},
		{"confirm ignored on login", CredentialInput{Email: "a@b.co", Password: "x", ConfirmPassword: "y"}, nil},
		{"ok", CredentialInput{Email: "a@b.co", Password: "x", ConfirmPassword: "x", CheckConfirm: true}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAndResolve(tt.in)
			if err != tt.wantErr {
				t.Errorf("ValidateAndResolve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAndResolve_Normalizes(t *testing.T) {
	c, err := ValidateAndResolve(CredentialInput{
		Email:    "  Alice@Example.COM ",
		Username: " <b>Alice</b> ",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("ValidateAndResolve() error = %v", err)
	}
	if c.Email != "Alice@Example.COM" {
		t.Errorf("Email = %q, want %q", c.Email, "Alice@Example.COM")
	}
	if c.EmailKey != "alice@example.com" {
		t.Errorf("EmailKey = %q, want %q", c.EmailKey, "alice@example.com")
	}
	if c.Username != "Alice" {
		t.Errorf("Username = %q, want %q", c.Username, "Alice")
	}
}

func TestSanitizeUsername_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < MaxUsernameLength+10; i++ {
		long += "x"
	}
	if got := SanitizeUsername(long); len([]rune(got)) != MaxUsernameLength {
		t.Errorf("len(SanitizeUsername()) = %d, want %d", len([]rune(got)), MaxUsernameLength)
	}
}
