package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// SetupTestRedis starts an in-process Redis server and returns a client
// connected to it. Both are closed via t.Cleanup.
//
// Use the returned *miniredis.Miniredis to inspect keys or move time forward:
//
//	rdb, mr := testutil.SetupTestRedis(t)
//	mr.FastForward(time.Minute)
func SetupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return rdb, mr
}
