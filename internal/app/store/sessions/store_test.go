package sessions_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/stratagate/internal/app/store/sessions"
	"github.com/dalemusser/stratagate/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func backends(t *testing.T) map[string]sessions.Backend {
	t.Helper()
	rdb, _ := testutil.SetupTestRedis(t)
	return map[string]sessions.Backend{
		"memory": sessions.NewMemoryBackend(),
		"redis":  sessions.NewRedisBackend(rdb, time.Hour),
	}
}

func TestStore_IssueResolveRevoke(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := sessions.New(backend, nil)
			ctx := context.Background()
			id := sessions.Identity{UserID: "rec123", Email: "a@b.co"}

			token, err := s.Issue(ctx, id)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			if len(token) < 43 {
				t.Errorf("token length = %d, want >= 43", len(token))
			}

			got, ok := s.Resolve(ctx, token)
			if !ok {
				t.Fatal("Resolve() ok = false for issued token")
			}
			if got != id {
				t.Errorf("Resolve() = %+v, want %+v", got, id)
			}

			if err := s.Revoke(ctx, token); err != nil {
				t.Fatalf("Revoke() error = %v", err)
			}
			if _, ok := s.Resolve(ctx, token); ok {
				t.Error("Resolve() ok = true after Revoke")
			}
			// Idempotent
			if err := s.Revoke(ctx, token); err != nil {
				t.Errorf("second Revoke() error = %v", err)
			}
		})
	}
}

func TestStore_UnknownAndEmptyTokens(t *testing.T) {
	s := sessions.New(sessions.NewMemoryBackend(), nil)
	ctx := context.Background()

	if _, ok := s.Resolve(ctx, ""); ok {
		t.Error("Resolve(\"\") ok = true")
	}
	if _, ok := s.Resolve(ctx, "never-issued"); ok {
		t.Error("Resolve(unknown) ok = true")
	}
	if err := s.Revoke(ctx, ""); err != nil {
		t.Errorf("Revoke(\"\") error = %v", err)
	}
	if err := s.Revoke(ctx, "never-issued"); err != nil {
		t.Errorf("Revoke(unknown) error = %v", err)
	}
}

func TestStore_TokensAreUnique(t *testing.T) {
	backend := sessions.NewMemoryBackend()
	s := sessions.New(backend, nil)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := s.Issue(ctx, sessions.Identity{UserID: "u"})
			if err != nil {
				t.Errorf("Issue() error = %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[token] {
				t.Errorf("duplicate token %q", token)
			}
			seen[token] = true
		}()
	}
	wg.Wait()

	if backend.Len() != 200 {
		t.Errorf("Len() = %d, want 200", backend.Len())
	}
}

type brokenBackend struct{}

func (brokenBackend) Insert(context.Context, string, sessions.Session) (bool, error) {
	return false, errors.New("down")
}

func (brokenBackend) Get(context.Context, string) (sessions.Session, bool, error) {
	return sessions.Session{}, false, errors.New("down")
}

func (brokenBackend) Delete(context.Context, string) error {
	return errors.New("down")
}

func TestStore_BackendErrors(t *testing.T) {
	s := sessions.New(brokenBackend{}, nil)
	ctx := context.Background()

	if _, err := s.Issue(ctx, sessions.Identity{}); err == nil {
		t.Error("Issue() error = nil with broken backend")
	}
	if _, ok := s.Resolve(ctx, "tok"); ok {
		t.Error("Resolve() ok = true with broken backend")
	}
	if err := s.Revoke(ctx, "tok"); err == nil {
		t.Error("Revoke() error = nil with broken backend")
	}
}

func TestRedisBackend_TTL(t *testing.T) {
	rdb, mr := testutil.SetupTestRedis(t)
	s := sessions.New(sessions.NewRedisBackend(rdb, time.Minute), nil)
	ctx := context.Background()

	token, err := s.Issue(ctx, sessions.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok := s.Resolve(ctx, token); ok {
		t.Error("Resolve() ok = true after Redis key expiry")
	}
}

func TestMongoBackend(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	backend := sessions.NewMongoBackend(db, time.Hour)
	if err := backend.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
	s := sessions.New(backend, nil)

	id := sessions.Identity{UserID: "665f1c2e9b1e8a0001a1b2c3", Email: "m@b.co"}
	token, err := s.Issue(ctx, id)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	got, ok := s.Resolve(ctx, token)
	if !ok || got != id {
		t.Errorf("Resolve() = %+v, %v; want %+v, true", got, ok, id)
	}

	inserted, err := backend.Insert(ctx, token, sessions.Session{Identity: id})
	if err != nil {
		t.Fatalf("Insert() duplicate error = %v", err)
	}
	if inserted {
		t.Error("Insert() of existing token reported inserted")
	}

	if err := s.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, ok := s.Resolve(ctx, token); ok {
		t.Error("Resolve() ok = true after Revoke")
	}
}

func TestMongoBackend_ExpiryFollowsTTL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id := sessions.Identity{UserID: "665f1c2e9b1e8a0001a1b2c4", Email: "ttl@b.co"}
	old := sessions.Session{Identity: id, CreatedAt: time.Now().Add(-48 * time.Hour)}

	// ttl == 0: no expiry, so an old session still resolves and is never swept.
	forever := sessions.NewMongoBackend(db, 0)
	if err := forever.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
	if _, err := forever.Insert(ctx, "tok-forever", old); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if n, err := forever.DeleteExpired(ctx, time.Now()); err != nil || n != 0 {
		t.Errorf("DeleteExpired() = %d, %v; want 0, nil", n, err)
	}
	if _, ok, err := forever.Get(ctx, "tok-forever"); err != nil || !ok {
		t.Errorf("Get() ok = %v, err = %v; want true with ttl 0", ok, err)
	}

	// ttl > 0: the record goes when the cookie lifetime has passed.
	bounded := sessions.NewMongoBackend(db, 24*time.Hour)
	if _, err := bounded.Insert(ctx, "tok-bounded", old); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if _, ok, _ := bounded.Get(ctx, "tok-bounded"); ok {
		t.Error("Get() ok = true for a session older than ttl")
	}
	if _, err := bounded.DeleteExpired(ctx, time.Now()); err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n, _ := db.Collection("sessions").CountDocuments(ctx, bson.M{"token": "tok-bounded"}); n != 0 {
		t.Errorf("expired session still stored (%d docs)", n)
	}
}
