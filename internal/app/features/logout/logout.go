// internal/app/features/logout/logout.go
package logout

import (
	"net/http"

	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/authflow"
	"github.com/dalemusser/stratagate/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler provides logout handlers.
type Handler struct {
	sessionMgr *auth.SessionManager
	flow       *authflow.Service
	logger     *zap.Logger
}

// NewHandler creates a new logout Handler.
func NewHandler(sessionMgr *auth.SessionManager, flow *authflow.Service, logger *zap.Logger) *Handler {
	return &Handler{
		sessionMgr: sessionMgr,
		flow:       flow,
		logger:     logger,
	}
}

// Routes returns a chi.Router with logout routes mounted.
// Logging out while signed out is not an error, so no auth guard is applied.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleLogout)
	r.Get("/", h.handleLogout) // Allow GET for simple logout links
	return r
}

// handleLogout revokes the session token and clears the cookie.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := ""
	if user, ok := auth.CurrentUser(r); ok {
		token = user.SessionToken()
	}
	if token == "" {
		// The registry may have forgotten the token already; revoke what the
		// cookie carries anyway.
		token = h.sessionMgr.SessionTokenFromRequest(r)
	}

	if token != "" {
		ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.logger, "logout")
		err := h.flow.Logout(ctx, token)
		cancel()
		if err != nil {
			h.logger.Warn("failed to revoke session", zap.Error(err))
		}
	}

	h.sessionMgr.DestroySession(w, r)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
