// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/auditlog"
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/dalemusser/stratagate/internal/app/system/normalize"
	"github.com/dalemusser/stratagate/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATAGATE"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: user_store, session_name, etc.
//   - Environment variables: STRATAGATE_USER_STORE, STRATAGATE_SESSION_NAME, etc.
//   - Command-line flags: --user_store, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "site_name", Default: "StrataGate", Desc: "Site name shown in page chrome"},

	// User records
	{Name: "user_store", Default: BackendMemory, Desc: "User record store: 'memory', 'mongo' or 'airtable'"},
	{Name: "airtable_api_key", Default: "", Desc: "Airtable personal access token"},
	{Name: "airtable_base_id", Default: "", Desc: "Airtable base id (app...)"},
	{Name: "airtable_table", Default: "Users", Desc: "Airtable table holding user records"},
	{Name: "airtable_base_url", Default: "", Desc: "Airtable API base URL (blank for the public API)"},

	// MongoDB
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratagate", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Redis
	{Name: "redis_url", Default: "redis://localhost:6379/0", Desc: "Redis URL for redis-backed sessions or rate limiting"},

	// Sessions
	{Name: "session_backend", Default: BackendMemory, Desc: "Session registry: 'memory', 'redis' or 'mongo'"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratagate-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},
	{Name: "session_secure", Default: true, Desc: "Mark session and CSRF cookies Secure (disable for plain-HTTP development)"},
	{Name: "session_cleanup_interval", Default: "1h", Desc: "How often expired Mongo sessions are swept (0 disables)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Rate limiting
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_backend", Default: BackendMemory, Desc: "Rate limit counters: 'memory', 'redis' or 'mongo'"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Failed login attempts before an address is refused"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Fixed window for counting failed attempts (0 never forgets)"},
	{Name: "rate_limit_prune_interval", Default: "5m", Desc: "How often expired counters are swept (0 disables)"},

	// Timeouts
	{Name: "timeout_ping", Default: "2s", Desc: "Deadline for each health probe"},
	{Name: "timeout_store", Default: "10s", Desc: "Deadline for one login, signup or logout against the backends"},

	// Passwords
	{Name: "password_iterations", Default: authutil.DefaultIterations, Desc: "PBKDF2 iterations for new password hashes (min 10000)"},

	{Name: "trust_proxy_headers", Default: false, Desc: "Take the client address from X-Forwarded-For / X-Real-IP"},

	// Audit logging
	{Name: "audit_log_auth", Default: auditlog.SettingAll, Desc: "Auth event logging: 'all' (trail+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, STRATAGATE_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		SiteName: appValues.String("site_name"),

		UserStore:       normalize.Code(appValues.String("user_store")),
		AirtableAPIKey:  appValues.String("airtable_api_key"),
		AirtableBaseID:  appValues.String("airtable_base_id"),
		AirtableTable:   appValues.String("airtable_table"),
		AirtableBaseURL: appValues.String("airtable_base_url"),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		RedisURL: appValues.String("redis_url"),

		SessionBackend:         normalize.Code(appValues.String("session_backend")),
		SessionKey:             appValues.String("session_key"),
		SessionName:            appValues.String("session_name"),
		SessionDomain:          appValues.String("session_domain"),
		SessionMaxAge:          appValues.Duration("session_max_age", 24*time.Hour),
		SessionSecure:          appValues.Bool("session_secure"),
		SessionCleanupInterval: appValues.Duration("session_cleanup_interval", time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitBackend:       normalize.Code(appValues.String("rate_limit_backend")),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitPruneInterval: appValues.Duration("rate_limit_prune_interval", 5*time.Minute),

		PingTimeout:  appValues.Duration("timeout_ping", timeouts.DefaultPing),
		StoreTimeout: appValues.Duration("timeout_store", timeouts.DefaultStore),

		PasswordIterations: appValues.Int("password_iterations"),
		TrustProxyHeaders:  appValues.Bool("trust_proxy_headers"),
		AuditLogAuth:       normalize.Code(appValues.String("audit_log_auth")),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := validateAppConfig(appCfg); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}
	if appCfg.PasswordIterations < authutil.MinIterations {
		logger.Warn("password_iterations below minimum, using default",
			zap.Int("configured", appCfg.PasswordIterations),
			zap.Int("default", authutil.DefaultIterations))
	}
	return nil
}

// validateAppConfig checks the backend selectors and the settings each
// selected backend requires.
func validateAppConfig(c AppConfig) error {
	switch c.UserStore {
	case BackendMemory, BackendMongo:
	case BackendAirtable:
		if c.AirtableAPIKey == "" {
			return errors.New("airtable_api_key is required when user_store is airtable")
		}
		if c.AirtableBaseID == "" {
			return errors.New("airtable_base_id is required when user_store is airtable")
		}
		if c.AirtableTable == "" {
			return errors.New("airtable_table is required when user_store is airtable")
		}
	default:
		return fmt.Errorf("unknown user_store %q (want memory, mongo or airtable)", c.UserStore)
	}

	switch c.SessionBackend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return fmt.Errorf("unknown session_backend %q (want memory, redis or mongo)", c.SessionBackend)
	}

	if c.RateLimitEnabled {
		switch c.RateLimitBackend {
		case BackendMemory, BackendRedis, BackendMongo:
		default:
			return fmt.Errorf("unknown rate_limit_backend %q (want memory, redis or mongo)", c.RateLimitBackend)
		}
		if c.RateLimitLoginAttempts < 1 {
			return fmt.Errorf("rate_limit_login_attempts must be at least 1, got %d", c.RateLimitLoginAttempts)
		}
		if c.RateLimitLoginWindow < 0 {
			return errors.New("rate_limit_login_window must not be negative")
		}
	}

	if c.SessionMaxAge <= 0 {
		return errors.New("session_max_age must be positive")
	}

	switch c.AuditLogAuth {
	case "", auditlog.SettingAll, auditlog.SettingDB, auditlog.SettingLog, auditlog.SettingOff:
	default:
		return fmt.Errorf("unknown audit_log_auth %q (want all, db, log or off)", c.AuditLogAuth)
	}

	if c.usesMongo() {
		if err := wafflemongo.ValidateURI(c.MongoURI); err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if c.MongoDatabase == "" {
			return errors.New("mongo_database is required")
		}
	}

	if c.usesRedis() {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}

	return nil
}
