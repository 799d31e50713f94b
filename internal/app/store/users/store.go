// internal/app/store/users/store.go
package userstore

// Terminology: User Identifiers
//   - UserID / userID / user_id: The record id assigned by the backing store
//   - Email / email: The identity a person signs in with, matched case-insensitively
//   - EmailKey: The lowercased email used for lookups and uniqueness

import (
	"context"
	"errors"

	"github.com/dalemusser/stratagate/internal/domain/models"
)

var (
	// ErrNotFound is returned by FindByEmail when no record has the email.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered
	// and the backend can enforce uniqueness.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
)

// Store is the user record store.
//
// Lookups are case-insensitive on email. Any error other than ErrNotFound
// from FindByEmail means the store could not answer; callers must not treat
// it as "no such user".
type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User) (*models.User, error)
	UpdateLog(ctx context.Context, id, log string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Ping(ctx context.Context) error
}
