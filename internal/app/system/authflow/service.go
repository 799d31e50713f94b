// internal/app/system/authflow/service.go
// Package authflow implements registration and login on top of the user
// store, the password hasher, the rate limiter and the session registry.
package authflow

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	"github.com/dalemusser/stratagate/internal/app/store/sessions"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auditlog"
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"go.uber.org/zap"
)

// RegisterInput holds the raw signup form values.
type RegisterInput struct {
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	IP              string
}

// LoginInput holds the raw login form values.
type LoginInput struct {
	Email    string
	Password string
	IP       string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token string
	User  *models.User
}

// Service runs the registration and login protocols.
type Service struct {
	users    userstore.Store
	hasher   *authutil.Hasher
	limiter  *ratelimit.Store // nil disables rate limiting
	sessions *sessions.Store
	audit    *auditlog.Logger
	logger   *zap.Logger
	now      func() time.Time

	// dummyHash is verified against when the account does not exist so an
	// unknown email costs the same as a wrong password.
	dummyHash string
}

// Config collects the collaborators of a Service.
type Config struct {
	Users    userstore.Store
	Hasher   *authutil.Hasher
	Limiter  *ratelimit.Store
	Sessions *sessions.Store
	Audit    *auditlog.Logger
	Logger   *zap.Logger
}

// New creates a Service. Hasher, Audit and Logger default when nil.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hasher == nil {
		cfg.Hasher = authutil.NewHasher(authutil.DefaultIterations)
	}
	if cfg.Audit == nil {
		cfg.Audit = auditlog.New(cfg.Logger, auditlog.Config{})
	}

	s := &Service{
		users:    cfg.Users,
		hasher:   cfg.Hasher,
		limiter:  cfg.Limiter,
		sessions: cfg.Sessions,
		audit:    cfg.Audit,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if p, err := s.hasher.Hash("dummy password that never matches"); err == nil {
		s.dummyHash = p.Encode()
	}
	return s
}

// Register creates an account.
//
// Order of checks: required fields and email shape, password policy,
// confirmation match, hashing, existing account, create. The new record
// carries a one-entry audit trail.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	creds, err := authutil.ValidateAndResolve(authutil.CredentialInput{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
	})
	switch {
	case errors.Is(err, authutil.ErrEmailRequired):
		return nil, errMalformed("email", InputMissingFields)
	case errors.Is(err, authutil.ErrInvalidEmail):
		return nil, errMalformed("email", InputInvalidEmail)
	case errors.Is(err, authutil.ErrPasswordRequired):
		return nil, errValidation(authutil.ReasonEmpty)
	case err != nil:
		return nil, errMalformed("", InputMissingFields)
	}

	if reason := authutil.ValidatePassword(creds.Password); reason != authutil.ReasonNone {
		return nil, errValidation(reason)
	}
	if in.Password != in.ConfirmPassword {
		return nil, errMalformed("confirmPassword", InputPasswordMismatch)
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, errInternal("hash password", err)
	}

	if _, err := s.users.FindByEmail(ctx, creds.EmailKey); err == nil {
		return nil, errEmailTaken()
	} else if !errors.Is(err, userstore.ErrNotFound) {
		return nil, errStore("lookup existing user", err)
	}

	ev := auditlog.Event{
		Action:  auditlog.ActionRegister,
		Outcome: auditlog.OutcomeSuccess,
		IP:      in.IP,
		Email:   creds.EmailKey,
	}
	trail := ""
	if s.audit.PersistsTrail() {
		trail = auditlog.Append("", auditlog.NewEntry(s.now(), in.IP, ev.Action, ev.Outcome))
	}

	u, err := s.users.Create(ctx, models.User{
		Email:        creds.Email,
		Username:     creds.Username,
		PasswordHash: hash.Encode(),
		Log:          trail,
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		return nil, errEmailTaken()
	}
	if err != nil {
		return nil, errStore("create user", err)
	}

	ev.UserID = u.ID
	s.audit.Log(ev)
	return u, nil
}

// Login verifies credentials and issues a session.
//
// Failed verifications, including unknown emails, count against the client
// address. A limited address is refused before the store is consulted.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	creds, err := authutil.ValidateAndResolve(authutil.CredentialInput{
		Email:    in.Email,
		Password: in.Password,
	})
	switch {
	case errors.Is(err, authutil.ErrEmailRequired):
		return nil, errMalformed("email", InputMissingFields)
	case errors.Is(err, authutil.ErrPasswordRequired):
		return nil, errMalformed("password", InputMissingFields)
	}

	if s.limiter.IsLimited(ctx, in.IP) {
		s.audit.Log(auditlog.Event{
			Action:  auditlog.ActionLogin,
			Outcome: auditlog.OutcomeRateLimited,
			IP:      in.IP,
			Email:   emailKey(creds),
		})
		return nil, errRateLimited()
	}

	if err != nil {
		// Badly shaped email: nothing to look up, but it still counts.
		s.limiter.RecordFailure(ctx, in.IP)
		s.audit.Log(auditlog.Event{
			Action:  auditlog.ActionLogin,
			Outcome: auditlog.OutcomeFailure,
			IP:      in.IP,
			Reason:  "invalid_email",
		})
		return nil, errInvalidCredentials()
	}

	u, err := s.users.FindByEmail(ctx, creds.EmailKey)
	if errors.Is(err, userstore.ErrNotFound) {
		s.hasher.VerifyEncoded(creds.Password, s.dummyHash)
		s.limiter.RecordFailure(ctx, in.IP)
		s.audit.Log(auditlog.Event{
			Action:  auditlog.ActionLogin,
			Outcome: auditlog.OutcomeFailure,
			IP:      in.IP,
			Email:   creds.EmailKey,
			Reason:  "unknown_user",
		})
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, errStore("lookup user", err)
	}

	if !s.hasher.VerifyEncoded(creds.Password, u.PasswordHash) {
		s.limiter.RecordFailure(ctx, in.IP)
		s.recordLogin(ctx, u, in.IP, auditlog.OutcomeFailure, "bad_password")
		return nil, errInvalidCredentials()
	}

	token, err := s.sessions.Issue(ctx, sessions.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, errInternal("issue session", err)
	}

	s.upgradeHash(ctx, u, creds.Password)
	s.recordLogin(ctx, u, in.IP, auditlog.OutcomeSuccess, "")

	return &LoginResult{Token: token, User: u}, nil
}

// Logout revokes the session for token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return errStore("revoke session", err)
	}
	return nil
}

// Resolve returns the identity behind a session token.
func (s *Service) Resolve(ctx context.Context, token string) (sessions.Identity, bool) {
	return s.sessions.Resolve(ctx, token)
}

// recordLogin appends a login event to the user's trail and persists it.
// Persistence failures are logged; they never change the login outcome.
func (s *Service) recordLogin(ctx context.Context, u *models.User, ip, outcome, reason string) {
	trail, changed := s.audit.Record(u.Log, auditlog.Event{
		Action:  auditlog.ActionLogin,
		Outcome: outcome,
		IP:      ip,
		UserID:  u.ID,
		Email:   u.Email,
		Reason:  reason,
	})
	if !changed {
		return
	}
	if err := s.users.UpdateLog(ctx, u.ID, trail); err != nil {
		s.logger.Warn("failed to persist audit trail",
			zap.String("user_id", u.ID),
			zap.Error(err))
		return
	}
	u.Log = trail
}

// upgradeHash re-hashes the password when the stored hash is bcrypt or
// uses fewer iterations than the current setting.
func (s *Service) upgradeHash(ctx context.Context, u *models.User, password string) {
	if !s.hasher.NeedsRehash(u.PasswordHash) {
		return
	}
	p, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, p.Encode()); err != nil {
		s.logger.Warn("failed to upgrade password hash",
			zap.String("user_id", u.ID),
			zap.Error(err))
		return
	}
	u.PasswordHash = p.Encode()
	s.logger.Info("upgraded password hash", zap.String("user_id", u.ID))
}

func emailKey(creds *authutil.Credentials) string {
	if creds != nil {
		return creds.EmailKey
	}
	return ""
}
