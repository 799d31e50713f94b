// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The record id assigned by the user store (Airtable record id or Mongo ObjectID hex)
//   - Email / email: The identity a person signs in with, matched case-insensitively

import "time"

// User is one registered account as held by the user record store.
//
// Credential fields:
//   - PasswordHash: encoded hash "pbkdf2-sha256$<iterations>$<salt hex>$<digest hex>";
//     accounts created before the PBKDF2 switch may still carry a bcrypt hash ("$2...")
//   - Log: serialized JSON array of authentication events, capped in size
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`              // as entered at registration
	Username     string    `json:"username,omitempty"` // optional display name, markup stripped
	PasswordHash string    `json:"-"`                  // never in JSON
	Log          string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DisplayName returns the username when set, otherwise the email.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// DefaultSiteName is shown in page chrome when site_name is not configured.
const DefaultSiteName = "StrataGate"
