package tasks_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	"github.com/dalemusser/stratagate/internal/app/store/sessions"
	"github.com/dalemusser/stratagate/internal/app/system/tasks"
	"github.com/dalemusser/stratagate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func TestRateLimitPruneJob(t *testing.T) {
	backend := ratelimit.NewMemoryBackend()
	limiter := ratelimit.New(backend, 5, 20*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	limiter.RecordFailure(ctx, "10.0.0.1")
	limiter.RecordFailure(ctx, "10.0.0.2")
	if backend.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", backend.Len())
	}

	job := tasks.RateLimitPruneJob(limiter, time.Minute, zap.NewNop())
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if backend.Len() != 2 {
		t.Errorf("Len() = %d after early prune, want 2", backend.Len())
	}

	time.Sleep(40 * time.Millisecond)
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if backend.Len() != 0 {
		t.Errorf("Len() = %d after window, want 0", backend.Len())
	}
}

func TestRateLimitPruneJob_DisabledLimiter(t *testing.T) {
	// A nil limiter (rate limiting off) prunes nothing and does not fail.
	job := tasks.RateLimitPruneJob(nil, time.Minute, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestSessionCleanupJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	backend := sessions.NewMongoBackend(db, time.Millisecond)
	store := sessions.New(backend, zap.NewNop())
	if _, err := store.Issue(ctx, sessions.Identity{UserID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	job := tasks.SessionCleanupJob(backend, time.Minute, zap.NewNop())
	if err := job.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	n, err := db.Collection("sessions").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("CountDocuments() error = %v", err)
	}
	if n != 0 {
		t.Errorf("sessions left = %d, want 0", n)
	}
}
