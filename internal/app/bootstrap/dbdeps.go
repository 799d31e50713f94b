// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	sessionstore "github.com/dalemusser/stratagate/internal/app/store/sessions"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/mehanizm/airtable"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown. Clients are nil when no component is
// configured to use them.
type DBDeps struct {
	// MongoDB client and database
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis client for redis-backed sessions or rate limiting
	Redis *redis.Client

	// Airtable client when user_store is airtable
	Airtable *airtable.Client

	// Users is the selected user record store.
	Users userstore.Store

	// Sessions is the session registry; Limiter is nil when rate limiting is off.
	Sessions *sessionstore.Store
	Limiter  *ratelimit.Store

	// Mongo-backed components, kept for index creation and cleanup jobs.
	UserMongo     *userstore.MongoStore
	SessionsMongo *sessionstore.MongoBackend
	LimiterMongo  *ratelimit.MongoBackend
}
