// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratagate/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratagate/internal/app/features/health"
	homefeature "github.com/dalemusser/stratagate/internal/app/features/home"
	loginfeature "github.com/dalemusser/stratagate/internal/app/features/login"
	logoutfeature "github.com/dalemusser/stratagate/internal/app/features/logout"
	membersfeature "github.com/dalemusser/stratagate/internal/app/features/members"
	registerfeature "github.com/dalemusser/stratagate/internal/app/features/register"
	appresources "github.com/dalemusser/stratagate/internal/app/resources"
	"github.com/dalemusser/stratagate/internal/app/system/auditlog"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/authflow"
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/dalemusser/stratagate/internal/app/system/reqlog"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, backend connections, schema setup,
// and Startup have completed. It builds the auth flow from the backends in
// deps, installs the global middleware and mounts the feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	secure := appCfg.SessionSecure
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser resolves the cookie token against the registry on
	// every request, so logouts take effect immediately.
	sessionMgr.SetResolver(deps.Sessions)

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	auditLogger := auditlog.New(logger, auditlog.Config{Auth: appCfg.AuditLogAuth})

	hasher := authutil.NewHasher(appCfg.PasswordIterations)
	logger.Info("password hashing ready", zap.Int("pbkdf2_iterations", hasher.Iterations()))

	flow := authflow.New(authflow.Config{
		Users:    deps.Users,
		Hasher:   hasher,
		Limiter:  deps.Limiter,
		Sessions: deps.Sessions,
		Audit:    auditLogger,
		Logger:   logger,
	})

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: prevents requests from hanging indefinitely.
	// Bounds store round-trips (Airtable, Mongo, Redis) made by handlers.
	r.Use(chimw.Timeout(30 * time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Request logging runs after the session is loaded so lines carry user_id.
	r.Use(reqlog.Middleware(reqlog.DefaultConfig(logger, appCfg.TrustProxyHeaders)))

	// CSRF protection for every form post.
	// Cookie name is "stratagate_csrf" to avoid collisions with other services
	// on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratagate_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("request_id", reqlog.RequestID(req.Context())),
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			errorsHandler.Forbidden(w, req)
		})),
	}
	// Without secure cookies (plain-HTTP development), trust localhost origins.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	checks := []healthfeature.Check{healthfeature.StoreCheck("users", deps.Users)}
	if deps.MongoClient != nil {
		checks = append(checks, healthfeature.MongoCheck(deps.MongoClient))
	}
	if deps.Redis != nil {
		checks = append(checks, healthfeature.RedisCheck(deps.Redis))
	}
	healthHandler := healthfeature.NewHandler(logger, checks...)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// /static/* serves files from disk (static directory)
	r.Handle("/static/*", fileserver.Handler("/static", "static"))

	// /assets/* serves embedded assets (bundled into the binary)
	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	// Public pages
	homeHandler := homefeature.NewHandler(logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	loginHandler := loginfeature.NewHandler(flow, sessionMgr, errLog, appCfg.TrustProxyHeaders, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	registerHandler := registerfeature.NewHandler(flow, errLog, appCfg.TrustProxyHeaders, logger)
	r.Mount("/signup", registerfeature.Routes(registerHandler))
	r.Mount("/register", registerfeature.Routes(registerHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, flow, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Signed-in area
	membersHandler := membersfeature.NewHandler(logger)
	r.Mount("/members", membersfeature.Routes(membersHandler, sessionMgr))

	// Error pages
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)
	r.NotFound(errorsHandler.NotFound)

	logger.Info("HTTP handler ready",
		zap.String("user_store", appCfg.UserStore),
		zap.String("session_backend", appCfg.SessionBackend),
		zap.Bool("rate_limit", deps.Limiter != nil),
		zap.Bool("secure_cookies", secure),
	)

	return r, nil
}
