// internal/app/features/register/register.go
package register

import (
	"net/http"

	errorsfeature "github.com/dalemusser/stratagate/internal/app/features/errors"
	"github.com/dalemusser/stratagate/internal/app/system/authflow"
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/dalemusser/stratagate/internal/app/system/network"
	"github.com/dalemusser/stratagate/internal/app/system/timeouts"
	"github.com/dalemusser/stratagate/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Error codes carried in the ?error= query parameter of /signup, besides
// the password policy reasons.
const (
	ErrEmailTaken       = "email_taken"
	ErrMissingFields    = authflow.InputMissingFields
	ErrInvalidEmail     = authflow.InputInvalidEmail
	ErrPasswordMismatch = authflow.InputPasswordMismatch
	ErrServer           = "server_error"
)

// FormPath is where the signup form lives and where errors send the browser.
const FormPath = "/signup"

// Handler provides signup handlers.
type Handler struct {
	flow       *authflow.Service
	errLog     *errorsfeature.ErrorLogger
	trustProxy bool
	logger     *zap.Logger
}

// NewHandler creates a new signup Handler.
func NewHandler(flow *authflow.Service, errLog *errorsfeature.ErrorLogger, trustProxy bool, logger *zap.Logger) *Handler {
	return &Handler{
		flow:       flow,
		errLog:     errLog,
		trustProxy: trustProxy,
		logger:     logger,
	}
}

// RegisterVM is the view model for the signup page.
type RegisterVM struct {
	viewdata.BaseVM
	Error string
	Rules string
}

// Routes returns a chi.Router with the signup routes mounted. It is
// mounted at both /signup and /register.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showSignup)
	r.Post("/", h.handleSignup)
	return r
}

// errorMessage maps an ?error= code to the sentence shown on the form.
func errorMessage(code string) string {
	if code == "" {
		return ""
	}
	if reason, ok := authutil.ParseReason(code); ok {
		return reason.Message()
	}
	switch code {
	case ErrEmailTaken:
		return "An account with that email already exists."
	case ErrMissingFields:
		return "Please fill in all required fields."
	case ErrInvalidEmail:
		return authutil.ErrInvalidEmail.Error()
	case ErrPasswordMismatch:
		return authutil.ErrPasswordMismatch.Error()
	case ErrServer:
		return "Service temporarily unavailable. Please try again."
	default:
		return "Sign up failed. Please try again."
	}
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	vm := RegisterVM{
		BaseVM: viewdata.New(r),
		Error:  errorMessage(query.Get(r, "error")),
		Rules:  authutil.PasswordRules(),
	}
	vm.Title = "Sign up"

	templates.Render(w, r, "register/index", vm)
}

// handleSignup creates the account and sends the browser to the login page.
// The new user is not signed in automatically.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Store(), h.logger, "signup")
	defer cancel()

	_, err := h.flow.Register(ctx, authflow.RegisterInput{
		Email:           r.PostFormValue("email"),
		Username:        r.PostFormValue("username"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
		IP:              network.ClientIP(r, h.trustProxy),
	})
	if err != nil {
		http.Redirect(w, r, FormPath+"?error="+h.errorCode(r, err), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *Handler) errorCode(r *http.Request, err error) string {
	switch authflow.CodeOf(err) {
	case authflow.CodeValidationFailed, authflow.CodeMalformedInput:
		if reason := authflow.ReasonOf(err); reason != "" {
			return reason
		}
		return ErrMissingFields
	case authflow.CodeEmailTaken:
		return ErrEmailTaken
	default:
		h.errLog.LogWithFields(r, "signup failed", err, zap.String("code", authflow.CodeOf(err)))
		return ErrServer
	}
}
