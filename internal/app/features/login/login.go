// internal/app/features/login/login.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The record id assigned by the user store
//   - Email / email: The identity typed into the login form

import (
	"net/http"
	"net/url"

	errorsfeature "github.com/dalemusser/stratagate/internal/app/features/errors"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/authflow"
	"github.com/dalemusser/stratagate/internal/app/system/network"
	"github.com/dalemusser/stratagate/internal/app/system/timeouts"
	"github.com/dalemusser/stratagate/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Error codes carried in the ?error= query parameter of /login.
const (
	ErrInvalidCredentials = "invalid_credentials"
	ErrRateLimited        = "rate_limited"
	ErrMissingFields      = "missing_fields"
	ErrServer             = "server_error"
)

// Handler provides login handlers.
type Handler struct {
	flow       *authflow.Service
	sessionMgr *auth.SessionManager
	errLog     *errorsfeature.ErrorLogger
	trustProxy bool // read the client address from proxy headers
	logger     *zap.Logger
}

// NewHandler creates a new login Handler.
func NewHandler(
	flow *authflow.Service,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	trustProxy bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		flow:       flow,
		sessionMgr: sessionMgr,
		errLog:     errLog,
		trustProxy: trustProxy,
		logger:     logger,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	viewdata.BaseVM
	Error     string
	Notice    string
	ReturnURL string
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showLogin)
	r.Post("/", h.handleLogin)
	return r
}

// errorMessage maps an ?error= code to the sentence shown on the form.
func errorMessage(code string) string {
	switch code {
	case "":
		return ""
	case ErrInvalidCredentials:
		return "Invalid email or password."
	case ErrRateLimited:
		return "Too many failed login attempts. Please try again later."
	case ErrMissingFields:
		return "Please enter your email and password."
	case ErrServer:
		return "Service temporarily unavailable. Please try again."
	default:
		return "Login failed. Please try again."
	}
}

// showLogin displays the login form.
func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	vm := LoginVM{
		BaseVM:    viewdata.New(r),
		Error:     errorMessage(query.Get(r, "error")),
		ReturnURL: query.Get(r, "return"),
	}
	if query.Get(r, "registered") == "1" {
		vm.Notice = "Your account has been created. Please log in."
	}
	vm.Title = "Login"

	templates.Render(w, r, "login/index", vm)
}

// handleLogin verifies the submitted credentials, writes the session cookie
// and sends the browser on to the members area.
//
// The identifier field is "email"; forms that still post it as "username"
// are accepted too.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	if email == "" {
		email = r.PostFormValue("username")
	}
	returnURL := r.PostFormValue("return")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.logger, "login")
	defer cancel()

	res, err := h.flow.Login(ctx, authflow.LoginInput{
		Email:    email,
		Password: r.PostFormValue("password"),
		IP:       network.ClientIP(r, h.trustProxy),
	})
	if err != nil {
		code := ErrServer
		switch authflow.CodeOf(err) {
		case authflow.CodeMalformedInput:
			code = ErrMissingFields
		case authflow.CodeInvalidCredentials:
			code = ErrInvalidCredentials
		case authflow.CodeRateLimited:
			code = ErrRateLimited
		default:
			h.errLog.LogWithFields(r, "login failed", err, zap.String("code", authflow.CodeOf(err)))
		}
		h.redirectWithError(w, r, code, returnURL)
		return
	}

	if err := h.sessionMgr.CreateSession(w, r, res.Token, res.User.Username); err != nil {
		h.errLog.Log(r, "failed to write session cookie", err)
		if rerr := h.flow.Logout(ctx, res.Token); rerr != nil {
			h.logger.Warn("failed to revoke orphaned session", zap.Error(rerr))
		}
		h.redirectWithError(w, r, ErrServer, returnURL)
		return
	}

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/members"), http.StatusSeeOther)
}

func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, code, returnURL string) {
	target := "/login?error=" + code
	if returnURL != "" {
		target += "&return=" + url.QueryEscape(returnURL)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
