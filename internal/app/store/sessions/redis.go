// internal/app/store/sessions/redis.go
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stratagate:session:"

// RedisBackend keeps sessions in Redis. Each key expires after ttl, which
// is set to the session cookie lifetime so keys do not outlive the cookies
// that carry them; 0 keeps keys until revoked, as with MemoryBackend.
type RedisBackend struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBackend creates a RedisBackend.
func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, ttl: ttl}
}

// Insert implements Backend using SET NX.
func (b *RedisBackend) Insert(ctx context.Context, token string, sess Session) (bool, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return false, err
	}
	return b.rdb.SetNX(ctx, redisKey(token), payload, b.ttl).Result()
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, token string) (Session, bool, error) {
	data, err := b.rdb.Get(ctx, redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, token string) error {
	return b.rdb.Del(ctx, redisKey(token)).Err()
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}
