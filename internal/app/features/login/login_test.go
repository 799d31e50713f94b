package login

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratagate/internal/app/features/errors"
	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	sessionstore "github.com/dalemusser/stratagate/internal/app/store/sessions"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auth"
	"github.com/dalemusser/stratagate/internal/app/system/authflow"
	"github.com/dalemusser/stratagate/internal/app/system/authutil"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"github.com/dalemusser/stratagate/internal/testutil"
	"go.uber.org/zap"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse-1!"
)

// downStore fails every lookup.
type downStore struct {
	*userstore.MemoryStore
}

func (downStore) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	router     http.Handler
	flow       *authflow.Service
	sessions   *sessionstore.Store
	sessionMgr *auth.SessionManager
}

func newFixture(t *testing.T, users userstore.Store) *fixture {
	t.Helper()
	logger := zap.NewNop()

	sessions := sessionstore.New(sessionstore.NewMemoryBackend(), logger)
	flow := authflow.New(authflow.Config{
		Users:    users,
		Hasher:   authutil.NewHasher(authutil.MinIterations),
		Limiter:  ratelimit.New(ratelimit.NewMemoryBackend(), 5, 0, logger),
		Sessions: sessions,
		Logger:   logger,
	})
	sessionMgr, err := auth.NewSessionManager("test-session-key-0123456789abcdef0123", "", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	sessionMgr.SetResolver(sessions)

	h := NewHandler(flow, sessionMgr, errorsfeature.NewErrorLogger(logger), false, logger)
	return &fixture{router: Routes(h), flow: flow, sessions: sessions, sessionMgr: sessionMgr}
}

func (f *fixture) register(t *testing.T) {
	t.Helper()
	_, err := f.flow.Register(context.Background(), authflow.RegisterInput{
		Email:           testEmail,
		Username:        "Alice",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
}

func (f *fixture) post(form url.Values) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, testutil.NewFormRequest("/", form))
	return rec
}

func TestHandleLogin_Success(t *testing.T) {
	f := newFixture(t, userstore.NewMemoryStore())
	f.register(t)

	rec := f.post(url.Values{"email": {"Alice@Example.com"}, "password": {testPassword}})
	rec.AssertRedirect(t, "/members")

	cookie := rec.Cookie(auth.DefaultSessionName)
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	// The cookie must resolve to the registered user on the next request.
	req := testutil.NewRequest(http.MethodGet, "/members")
	req.AddCookie(cookie)
	var got *auth.SessionUser
	f.sessionMgr.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.CurrentUser(r)
	})).ServeHTTP(testutil.NewRecorder(), req)

	if got == nil {
		t.Fatal("cookie did not resolve to a signed-in user")
	}
	if got.Email != testEmail {
		t.Errorf("Email = %q, want %q", got.Email, testEmail)
	}
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice")
	}
}

func TestHandleLogin_UsernameFieldAlias(t *testing.T) {
	f := newFixture(t, userstore.NewMemoryStore())
	f.register(t)

	rec := f.post(url.Values{"username": {testEmail}, "password": {testPassword}})
	rec.AssertRedirect(t, "/members")
}

func TestHandleLogin_ReturnURL(t *testing.T) {
	f := newFixture(t, userstore.NewMemoryStore())
	f.register(t)

	rec := f.post(url.Values{"email": {testEmail}, "password": {testPassword}, "return": {"/members?tab=1"}})
	rec.AssertRedirect(t, "/members?tab=1")
}

func TestHandleLogin_Failures(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"wrong password", url.Values{"email": {testEmail}, "password": {"wrong-horse-1!"}}, "/login?error=invalid_credentials"},
		{"unknown user", url.Values{"email": {"bob@example.com"}, "password": {testPassword}}, "/login?error=invalid_credentials"},
		{"missing password", url.Values{"email": {testEmail}}, "/login?error=missing_fields"},
		{"missing email", url.Values{"password": {testPassword}}, "/login?error=missing_fields"},
		{"keeps return", url.Values{"email": {testEmail}, "password": {"nope"}, "return": {"/members"}}, "/login?error=invalid_credentials&return=%2Fmembers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, userstore.NewMemoryStore())
			f.register(t)

			rec := f.post(tt.form)
			rec.AssertRedirect(t, tt.want)
			if c := rec.Cookie(auth.DefaultSessionName); c != nil && c.MaxAge >= 0 {
				t.Error("failed login set a session cookie")
			}
		})
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	f := newFixture(t, userstore.NewMemoryStore())
	f.register(t)

	bad := url.Values{"email": {testEmail}, "password": {"wrong-horse-1!"}}
	for i := 0; i < 5; i++ {
		f.post(bad).AssertRedirect(t, "/login?error=invalid_credentials")
	}

	// Even the right password is refused once the address is limited.
	rec := f.post(url.Values{"email": {testEmail}, "password": {testPassword}})
	rec.AssertRedirect(t, "/login?error=rate_limited")
}

func TestHandleLogin_StoreUnavailable(t *testing.T) {
	f := newFixture(t, downStore{userstore.NewMemoryStore()})

	rec := f.post(url.Values{"email": {testEmail}, "password": {testPassword}})
	rec.AssertRedirect(t, "/login?error=server_error")
}

func TestShowLogin_Messages(t *testing.T) {
	testutil.MustBootTemplates(t)
	f := newFixture(t, userstore.NewMemoryStore())

	tests := []struct {
		target string
		want   string
	}{
		{"/?error=invalid_credentials", "Invalid email or password."},
		{"/?error=rate_limited", "Too many failed login attempts."},
		{"/?error=missing_fields", "Please enter your email and password."},
		{"/?registered=1", "Your account has been created."},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := testutil.NewRecorder()
			f.router.ServeHTTP(rec, testutil.WithCSRFToken(testutil.NewRequest(http.MethodGet, tt.target)))
			rec.AssertStatus(t, http.StatusOK)
			rec.AssertContains(t, tt.want)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	if errorMessage("") != "" {
		t.Error("errorMessage(\"\") should be empty")
	}
	if got := errorMessage("<script>"); got != "Login failed. Please try again." {
		t.Errorf("errorMessage(unknown) = %q", got)
	}
}
