// internal/app/features/members/members.go
package members

import (
	"net/http"

	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the members-only area.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new members Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// MembersVM is the view model for the members page.
type MembersVM struct {
	viewdata.BaseVM
	Email string
}

// Routes returns a chi.Router with members routes mounted behind
// RequireSignedIn.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.Index)
	return r
}

// Index renders the members page for the signed-in user.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	vm := MembersVM{BaseVM: viewdata.NewBaseVM(r, "Members", "/")}
	if user, ok := auth.CurrentUser(r); ok {
		vm.Email = user.Email
	}

	templates.Render(w, r, "members/index", vm)
}
