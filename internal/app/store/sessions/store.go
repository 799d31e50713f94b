// internal/app/store/sessions/store.go
package sessions

// Terminology: Session Identifiers
//   - Token: the opaque value carried in the session cookie; the registry key
//   - UserID: the user store record id the session belongs to

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TokenBytes is the amount of randomness in a session token.
const TokenBytes = 32

// issueAttempts bounds retries when a generated token is already taken.
const issueAttempts = 3

// ErrTokenCollision is returned by Issue when every generated token was
// already registered.
var ErrTokenCollision = errors.New("sessions: could not generate an unused token")

// Identity is what a session resolves to.
type Identity struct {
	UserID string `json:"user_id" bson:"user_id"`
	Email  string `json:"email" bson:"email"`
}

// Session is a registry entry.
type Session struct {
	Identity  `bson:",inline"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Backend stores sessions by token.
type Backend interface {
	// Insert stores sess under token unless the token is already present.
	// It reports whether the insert happened.
	Insert(ctx context.Context, token string, sess Session) (bool, error)
	// Get returns the session for token, or ok=false when there is none.
	Get(ctx context.Context, token string) (sess Session, ok bool, err error)
	// Delete removes token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

// Store is the session registry: token -> identity.
//
// The registry never evicts sessions on its own. A session lives until it is
// revoked or the backend loses it (process restart for the memory backend,
// key TTL for the Redis and Mongo backends).
type Store struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	read    func([]byte) (int, error)
}

// New creates a session Store on backend.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		read:    rand.Read,
	}
}

// generateToken returns TokenBytes from read, base64url encoded.
func generateToken(read func([]byte) (int, error)) (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue registers a new session for id and returns its token.
func (s *Store) Issue(ctx context.Context, id Identity) (string, error) {
	sess := Session{Identity: id, CreatedAt: s.now().UTC()}

	for attempt := 0; attempt < issueAttempts; attempt++ {
		token, err := generateToken(s.read)
		if err != nil {
			return "", err
		}
		ok, err := s.backend.Insert(ctx, token, sess)
		if err != nil {
			return "", fmt.Errorf("register session: %w", err)
		}
		if ok {
			return token, nil
		}
		s.logger.Warn("session token collision, regenerating",
			zap.Int("attempt", attempt+1))
	}
	return "", ErrTokenCollision
}

// Resolve returns the identity for token. Unknown, revoked and empty tokens
// report ok=false. Backend errors are logged and also report ok=false.
func (s *Store) Resolve(ctx context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	sess, ok, err := s.backend.Get(ctx, token)
	if err != nil {
		s.logger.Error("session lookup failed", zap.Error(err))
		return Identity{}, false
	}
	if !ok {
		return Identity{}, false
	}
	return sess.Identity, true
}

// Revoke removes token from the registry. Revoking an unknown or empty
// token is a no-op.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.backend.Delete(ctx, token); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
