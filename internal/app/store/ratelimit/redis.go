// internal/app/store/ratelimit/redis.go
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stratagate:ratelimit:"

// RedisBackend keeps counters in Redis so they survive restarts and are
// shared between instances. Window expiry is a key TTL set on the first
// failure of each window, in the same script as the increment.
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend creates a RedisBackend.
func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// Count implements Backend.
func (b *RedisBackend) Count(ctx context.Context, key string, _ time.Duration, _ time.Time) (int, error) {
	n, err := b.rdb.Get(ctx, redisKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

// incrScript increments KEYS[1] and, when ARGV[1] > 0, gives it a TTL of
// ARGV[1] milliseconds if it has none. A key left without a TTL is repaired
// by the next failure.
var incrScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 and redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return n
`)

// Increment implements Backend.
func (b *RedisBackend) Increment(ctx context.Context, key string, window time.Duration, _ time.Time) (int, error) {
	ms := window.Milliseconds()
	if window > 0 && ms < 1 {
		ms = 1
	}
	n, err := incrScript.Run(ctx, b.rdb, []string{redisKey(key)}, ms).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}
