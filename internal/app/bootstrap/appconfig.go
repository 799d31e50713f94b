// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Backend selectors shared by the user store, the session registry and the
// rate limiter.
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
	BackendAirtable = "airtable"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// HTTP listener, TLS, logging, CORS and body limits; everything the gateway
// itself needs lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// SiteName is shown in page chrome.
	SiteName string

	// UserStore selects where user records live: "memory", "mongo" or "airtable".
	UserStore string

	// Airtable configuration (UserStore == "airtable")
	AirtableAPIKey  string
	AirtableBaseID  string
	AirtableTable   string
	AirtableBaseURL string // blank means the public Airtable API

	// MongoDB connection configuration (any component using "mongo")
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// RedisURL is a redis:// URL used by any component set to "redis".
	RedisURL string

	// Session registry and cookie configuration
	SessionBackend         string        // "memory", "redis" or "mongo"
	SessionKey             string        // cookie signing key (32+ chars in production)
	SessionName            string        // cookie name
	SessionDomain          string        // blank means current host
	SessionMaxAge          time.Duration // cookie lifetime, also the Redis/Mongo TTL
	SessionSecure          bool          // Secure flag on session and CSRF cookies
	SessionCleanupInterval time.Duration // Mongo registry sweep; 0 disables

	// CSRF protection configuration
	CSRFKey string

	// Rate limiting configuration
	RateLimitEnabled       bool
	RateLimitBackend       string        // "memory", "redis" or "mongo"
	RateLimitLoginAttempts int           // failures before an address is refused
	RateLimitLoginWindow   time.Duration // fixed window; 0 never forgets
	RateLimitPruneInterval time.Duration // memory/Mongo sweep; 0 disables

	// Per-operation deadlines: one health probe, one login/signup/logout.
	PingTimeout  time.Duration
	StoreTimeout time.Duration

	// PasswordIterations is the PBKDF2 work factor for new hashes.
	PasswordIterations int

	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the client address.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool

	// AuditLogAuth routes authentication events:
	// "all" (user trail + zap), "db" (trail only), "log" (zap only), "off".
	AuditLogAuth string
}

// usesMongo reports whether any component is backed by MongoDB.
func (c AppConfig) usesMongo() bool {
	return c.UserStore == BackendMongo ||
		c.SessionBackend == BackendMongo ||
		(c.RateLimitEnabled && c.RateLimitBackend == BackendMongo)
}

// usesRedis reports whether any component is backed by Redis.
func (c AppConfig) usesRedis() bool {
	return c.SessionBackend == BackendRedis ||
		(c.RateLimitEnabled && c.RateLimitBackend == BackendRedis)
}
