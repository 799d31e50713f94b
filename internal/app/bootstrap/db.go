// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	sessionstore "github.com/dalemusser/stratagate/internal/app/store/sessions"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectDB connects to the backends the configuration selects and builds
// the user store, session registry and rate limiter on top of them.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup. MongoDB and Redis are only dialed when some component uses them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	if appCfg.usesMongo() {
		poolCfg := wafflemongo.DefaultPoolConfig()
		if appCfg.MongoMaxPoolSize > 0 {
			poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
		}
		if appCfg.MongoMinPoolSize > 0 {
			poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
		}

		client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
		if err != nil {
			return DBDeps{}, err
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)

		logger.Info("connected to MongoDB",
			zap.String("database", appCfg.MongoDatabase),
			zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
			zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
		)
	}

	if appCfg.usesRedis() {
		opts, err := redis.ParseURL(appCfg.RedisURL)
		if err != nil {
			closeDeps(ctx, deps, logger)
			return DBDeps{}, fmt.Errorf("invalid redis_url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			closeDeps(ctx, deps, logger)
			return DBDeps{}, fmt.Errorf("redis ping failed: %w", err)
		}
		deps.Redis = rdb
		logger.Info("connected to Redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	}

	// User records
	switch appCfg.UserStore {
	case BackendAirtable:
		client, err := userstore.NewAirtableClient(appCfg.AirtableAPIKey, appCfg.AirtableBaseURL)
		if err != nil {
			closeDeps(ctx, deps, logger)
			return DBDeps{}, fmt.Errorf("failed to initialize Airtable client: %w", err)
		}
		deps.Airtable = client
		deps.Users = userstore.NewAirtableStore(client, appCfg.AirtableBaseID, appCfg.AirtableTable)
		logger.Info("using Airtable user store",
			zap.String("base_id", appCfg.AirtableBaseID),
			zap.String("table", appCfg.AirtableTable))
	case BackendMongo:
		deps.UserMongo = userstore.NewMongoStore(deps.MongoDatabase)
		deps.Users = deps.UserMongo
		logger.Info("using MongoDB user store")
	default:
		deps.Users = userstore.NewMemoryStore()
		logger.Warn("using in-memory user store; accounts are lost on restart")
	}

	// Session registry
	var sessBackend sessionstore.Backend
	switch appCfg.SessionBackend {
	case BackendRedis:
		sessBackend = sessionstore.NewRedisBackend(deps.Redis, appCfg.SessionMaxAge)
	case BackendMongo:
		deps.SessionsMongo = sessionstore.NewMongoBackend(deps.MongoDatabase, appCfg.SessionMaxAge)
		sessBackend = deps.SessionsMongo
	default:
		sessBackend = sessionstore.NewMemoryBackend()
	}
	deps.Sessions = sessionstore.New(sessBackend, logger)
	logger.Info("session registry ready", zap.String("backend", appCfg.SessionBackend))

	// Rate limiter
	if appCfg.RateLimitEnabled {
		var rlBackend ratelimit.Backend
		switch appCfg.RateLimitBackend {
		case BackendRedis:
			rlBackend = ratelimit.NewRedisBackend(deps.Redis)
		case BackendMongo:
			deps.LimiterMongo = ratelimit.NewMongoBackend(deps.MongoDatabase)
			rlBackend = deps.LimiterMongo
		default:
			rlBackend = ratelimit.NewMemoryBackend()
		}
		deps.Limiter = ratelimit.New(rlBackend, appCfg.RateLimitLoginAttempts, appCfg.RateLimitLoginWindow, logger)
		logger.Info("login rate limiting enabled",
			zap.String("backend", appCfg.RateLimitBackend),
			zap.Int("attempts", deps.Limiter.Threshold()),
			zap.Duration("window", deps.Limiter.Window()))
	} else {
		logger.Warn("login rate limiting disabled")
	}

	return deps, nil
}

// EnsureSchema creates the MongoDB indexes of the Mongo-backed components.
//
// The context has a timeout based on coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.UserMongo != nil {
		if err := deps.UserMongo.EnsureIndexes(ctx); err != nil {
			logger.Error("failed to ensure user indexes", zap.Error(err))
			return err
		}
	}
	if deps.SessionsMongo != nil {
		if err := deps.SessionsMongo.EnsureIndexes(ctx); err != nil {
			logger.Error("failed to ensure session indexes", zap.Error(err))
			return err
		}
	}
	if deps.LimiterMongo != nil {
		if err := deps.LimiterMongo.EnsureIndexes(ctx, appCfg.RateLimitLoginWindow); err != nil {
			logger.Error("failed to ensure rate limit indexes", zap.Error(err))
			return err
		}
	}
	if deps.MongoDatabase != nil {
		logger.Info("database schema ensured successfully")
	}
	return nil
}

// closeDeps releases clients opened before a later ConnectDB step failed.
func closeDeps(ctx context.Context, deps DBDeps, logger *zap.Logger) {
	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}
}
