// internal/app/system/reqlog/middleware.go
package reqlog

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/network"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ctxKey is the context key type for request log data.
type ctxKey int

const ctxKeyRequestID ctxKey = iota

// HeaderRequestID carries the request id on requests and responses.
const HeaderRequestID = "X-Request-ID"

// Config holds configuration for the request logging middleware.
type Config struct {
	Logger *zap.Logger

	// ExcludePaths is a list of path prefixes that are not logged.
	// Requests to them still get a request id.
	ExcludePaths []string

	// TrustProxy selects X-Forwarded-For / X-Real-IP for the logged client
	// address. Only enable behind a proxy that sets them.
	TrustProxy bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(logger *zap.Logger, trustProxy bool) Config {
	return Config{
		Logger: logger,
		ExcludePaths: []string{
			"/health",
			"/livez",
			"/assets",
			"/static",
			"/favicon.ico",
		},
		TrustProxy: trustProxy,
	}
}

// Middleware returns HTTP middleware that tags each request with an id and
// logs one line per request when it completes. Form bodies are never read.
//
// Mount it after auth.LoadSessionUser so the signed-in user is visible.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := clientRequestID(r)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(HeaderRequestID, requestID)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, requestID))

			path := r.URL.Path
			for _, prefix := range cfg.ExcludePaths {
				if strings.HasPrefix(path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := time.Now()
			wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", path),
				zap.Int("status", wrapped.statusCode),
				zap.Int64("bytes", wrapped.bytesWritten),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", network.ClientIP(r, cfg.TrustProxy)),
			}
			if user, ok := auth.CurrentUser(r); ok {
				fields = append(fields, zap.String("user_id", user.ID))
			}

			switch {
			case wrapped.statusCode >= 500:
				logger.Error("request", fields...)
			case wrapped.statusCode >= 400:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
		})
	}
}

// clientRequestID returns the caller's X-Request-ID when it is a UUID.
func clientRequestID(r *http.Request) string {
	v := r.Header.Get(HeaderRequestID)
	if v == "" {
		return ""
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return ""
	}
	return id.String()
}

// RequestID returns the request id for the current request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// responseWrapper wraps http.ResponseWriter to capture status code and bytes written.
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
