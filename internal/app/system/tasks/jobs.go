// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	"github.com/dalemusser/stratagate/internal/app/store/sessions"
	"go.uber.org/zap"
)

// RateLimitPruneJob drops login-attempt counters whose window has passed.
// Only the in-memory backend needs it; the others expire counters themselves
// and Prune is a no-op for them.
func RateLimitPruneJob(limiter *ratelimit.Store, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "ratelimit-prune",
		Interval: interval,
		Run: func(ctx context.Context) error {
			removed, err := limiter.Prune(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("pruned expired login attempt counters",
					zap.Int("removed", removed))
			}
			return nil
		},
	}
}

// SessionCleanupJob removes expired sessions from MongoDB between TTL
// monitor passes, which run only once a minute.
func SessionCleanupJob(backend *sessions.MongoBackend, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "session-cleanup",
		Interval: interval,
		Run: func(ctx context.Context) error {
			deleted, err := backend.DeleteExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if deleted > 0 {
				logger.Info("cleaned up expired sessions",
					zap.Int64("deleted", deleted))
			}
			return nil
		},
	}
}
