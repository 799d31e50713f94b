// internal/app/store/ratelimit/store.go
package ratelimit

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultThreshold is the number of failed logins after which a client
// address is refused.
const DefaultThreshold = 5

// Backend holds per-address failure counters.
//
// A counter whose window started more than window ago reads as zero and is
// restarted by the next Increment. A window of zero never expires counters.
type Backend interface {
	// Count returns the current failure count for key.
	Count(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	// Increment atomically adds one failure and returns the new count.
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
}

// Pruner is implemented by backends that need expired counters removed
// explicitly.
type Pruner interface {
	Prune(ctx context.Context, window time.Duration, now time.Time) (int, error)
}

// Store throttles login attempts per client address.
//
// Backend errors fail open: a counter that cannot be read never blocks a
// login, and a failure that cannot be recorded is dropped. Both are logged.
type Store struct {
	backend   Backend
	threshold int
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a rate limit Store. threshold <= 0 uses DefaultThreshold.
// window <= 0 keeps counts for the life of the backend.
func New(backend Backend, threshold int, window time.Duration, logger *zap.Logger) *Store {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window < 0 {
		window = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:   backend,
		threshold: threshold,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// Threshold returns the configured failure threshold.
func (s *Store) Threshold() int {
	return s.threshold
}

// Window returns the configured counting window.
func (s *Store) Window() time.Duration {
	return s.window
}

// normalizeAddr trims and lowercases the address so IPv6 spellings compare equal.
func normalizeAddr(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "unknown"
	}
	return addr
}

// IsLimited reports whether addr has reached the failure threshold.
// A nil Store never limits.
func (s *Store) IsLimited(ctx context.Context, addr string) bool {
	if s == nil {
		return false
	}
	key := normalizeAddr(addr)
	n, err := s.backend.Count(ctx, key, s.window, s.now())
	if err != nil {
		s.logger.Warn("rate limit lookup failed, allowing attempt",
			zap.String("addr", key),
			zap.Error(err))
		return false
	}
	return n >= s.threshold
}

// RecordFailure increments the failure counter for addr and returns the new
// count (0 if it could not be recorded).
func (s *Store) RecordFailure(ctx context.Context, addr string) int {
	if s == nil {
		return 0
	}
	key := normalizeAddr(addr)
	n, err := s.backend.Increment(ctx, key, s.window, s.now())
	if err != nil {
		s.logger.Warn("rate limit increment failed",
			zap.String("addr", key),
			zap.Error(err))
		return 0
	}
	if n == s.threshold {
		s.logger.Info("client address reached login failure threshold",
			zap.String("addr", key),
			zap.Int("threshold", s.threshold),
			zap.Duration("window", s.window))
	}
	return n
}

// Prune removes expired counters when the backend needs it. It is a no-op
// for backends that expire keys themselves or when no window is configured.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if s == nil || s.window == 0 {
		return 0, nil
	}
	p, ok := s.backend.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx, s.window, s.now())
}

func expired(start time.Time, window time.Duration, now time.Time) bool {
	return window > 0 && !now.Before(start.Add(window))
}
