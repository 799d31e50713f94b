package authflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/stratagate/internal/app/store/ratelimit"
	"github.com/dalemusser/stratagate/internal/app/store/sessions"
	userstore "github.com/dalemusser/stratagate/internal/app/store/users"
	"github.com/dalemusser/stratagate/internal/app/system/auditlog"
	"github.com/dalemusser/stratagate/internal/domain/models"
	"golang.org/x/crypto/bcrypt"
)

// flakyStore wraps a MemoryStore and fails selected operations.
type flakyStore struct {
	*userstore.MemoryStore
	failFind      bool
	failCreate    bool
	failUpdateLog bool
}

var errDown = errors.New("connection refused")

func (f *flakyStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.failFind {
		return nil, errDown
	}
	return f.MemoryStore.FindByEmail(ctx, email)
}

func (f *flakyStore) Create(ctx context.Context, u models.User) (*models.User, error) {
	if f.failCreate {
		return nil, errDown
	}
	return f.MemoryStore.Create(ctx, u)
}

func (f *flakyStore) UpdateLog(ctx context.Context, id, log string) error {
	if f.failUpdateLog {
		return errDown
	}
	return f.MemoryStore.UpdateLog(ctx, id, log)
}

type fixture struct {
	svc      *Service
	users    *flakyStore
	sessions *sessions.MemoryBackend
	limiter  *ratelimit.MemoryBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := &flakyStore{MemoryStore: userstore.NewMemoryStore()}
	sessBackend := sessions.NewMemoryBackend()
	rlBackend := ratelimit.NewMemoryBackend()
	svc := New(Config{
		Users:    users,
		Limiter:  ratelimit.New(rlBackend, 5, 0, nil),
		Sessions: sessions.New(sessBackend, nil),
	})
	return &fixture{svc: svc, users: users, sessions: sessBackend, limiter: rlBackend}
}

func (f *fixture) register(t *testing.T, email, password string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		IP:              "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Register(%q) error = %v", email, err)
	}
	return u
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@b.com", "Secret123!")

	if u.ID == "" {
		t.Error("Register() returned user without ID")
	}
	if !strings.HasPrefix(u.PasswordHash, "pbkdf2-sha256$") {
		t.Errorf("PasswordHash = %q, want pbkdf2 encoding", u.PasswordHash)
	}
	if strings.Contains(u.PasswordHash, "Secret123!") || strings.Contains(u.Log, "Secret123!") {
		t.Error("plaintext password stored on the record")
	}

	entries := auditlog.Parse(u.Log)
	if len(entries) != 1 {
		t.Fatalf("trail has %d entries, want 1", len(entries))
	}
	if entries[0].Action != auditlog.ActionRegister || entries[0].Outcome != auditlog.OutcomeSuccess {
		t.Errorf("entry = %+v, want register/success", entries[0])
	}
	if entries[0].IP != "10.0.0.1" {
		t.Errorf("entry IP = %q, want 10.0.0.1", entries[0].IP)
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "Secret123!")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Email:           "A@B.com",
		Password:        "Another123!",
		ConfirmPassword: "Another123!",
	})
	if got := CodeOf(err); got != CodeEmailTaken {
		t.Errorf("CodeOf() = %q, want %q", got, CodeEmailTaken)
	}
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		in         RegisterInput
		wantCode   string
		wantReason string
	}{
		{"missing email", RegisterInput{Password: "Secret123!", ConfirmPassword: "Secret123!"}, CodeMalformedInput, InputMissingFields},
		{"invalid email", RegisterInput{Email: "nope", Password: "Secret123!", ConfirmPassword: "Secret123!"}, CodeMalformedInput, InputInvalidEmail},
		{"empty password", RegisterInput{Email: "a@b.com"}, CodeValidationFailed, "empty"},
		{"too short", RegisterInput{Email: "a@b.com", Password: "short1!", ConfirmPassword: "short1!"}, CodeValidationFailed, "too_short"},
		{"missing digit", RegisterInput{Email: "a@b.com", Password: "NoDigitsHere!", ConfirmPassword: "NoDigitsHere!"}, CodeValidationFailed, "missing_digit"},
		{"missing special", RegisterInput{Email: "a@b.com", Password: "NoSpecial123", ConfirmPassword: "NoSpecial123"}, CodeValidationFailed, "missing_special_char"},
		{"mismatch", RegisterInput{Email: "a@b.com", Password: "Secret123!", ConfirmPassword: "Secret124!"}, CodeMalformedInput, InputPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Register(context.Background(), tt.in)
			if got := CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q, want %q", got, tt.wantCode)
			}
			if got := ReasonOf(err); got != tt.wantReason {
				t.Errorf("ReasonOf() = %q, want %q", got, tt.wantReason)
			}
			if f.users.Len() != 0 {
				t.Error("rejected registration created a record")
			}
			if err != nil && tt.in.Password != "" && strings.Contains(err.Error(), tt.in.Password) {
				t.Error("error message contains the password")
			}
		})
	}
}

func TestRegister_StoreUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*flakyStore)
	}{
		{"lookup", func(s *flakyStore) { s.failFind = true }},
		{"create", func(s *flakyStore) { s.failCreate = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.users)
			_, err := f.svc.Register(context.Background(), RegisterInput{
				Email:           "a@b.com",
				Password:        "Secret123!",
				ConfirmPassword: "Secret123!",
			})
			if got := CodeOf(err); got != CodeStoreUnavailable {
				t.Errorf("CodeOf() = %q, want %q", got, CodeStoreUnavailable)
			}
			if !errors.Is(err, errDown) {
				t.Error("store error not wrapped")
			}
		})
	}
}

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "a@b.com", "Secret123!")

	res, err := f.svc.Login(ctx, LoginInput{Email: "A@b.com", Password: "Secret123!", IP: "1.2.3.4"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" {
		t.Fatal("Login() returned empty token")
	}

	id, ok := f.svc.Resolve(ctx, res.Token)
	if !ok {
		t.Fatal("Resolve() ok = false for fresh token")
	}
	if id.UserID != u.ID || id.Email != "a@b.com" {
		t.Errorf("Resolve() = %+v, want user %s", id, u.ID)
	}

	stored, _ := f.users.FindByEmail(ctx, "a@b.com")
	entries := auditlog.Parse(stored.Log)
	if len(entries) != 2 {
		t.Fatalf("trail has %d entries, want 2", len(entries))
	}
	last := entries[1]
	if last.Action != auditlog.ActionLogin || last.Outcome != auditlog.OutcomeSuccess || last.IP != "1.2.3.4" {
		t.Errorf("last entry = %+v, want login/success from 1.2.3.4", last)
	}
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "Secret123!")

	_, wrongErr := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Wrong123!", IP: "1.2.3.4"})
	_, unknownErr := f.svc.Login(ctx, LoginInput{Email: "nobody@b.com", Password: "Secret123!", IP: "1.2.3.4"})

	if CodeOf(wrongErr) != CodeInvalidCredentials {
		t.Errorf("wrong password code = %q, want %q", CodeOf(wrongErr), CodeInvalidCredentials)
	}
	if CodeOf(unknownErr) != CodeInvalidCredentials {
		t.Errorf("unknown user code = %q, want %q", CodeOf(unknownErr), CodeInvalidCredentials)
	}
	if wrongErr.Error() != unknownErr.Error() {
		t.Errorf("messages differ: %q vs %q", wrongErr.Error(), unknownErr.Error())
	}
	if f.sessions.Len() != 0 {
		t.Errorf("sessions issued = %d, want 0", f.sessions.Len())
	}

	stored, _ := f.users.FindByEmail(ctx, "a@b.com")
	entries := auditlog.Parse(stored.Log)
	if len(entries) != 2 || entries[1].Outcome != auditlog.OutcomeFailure {
		t.Errorf("trail = %+v, want register then login/failure", entries)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "Secret123!")

	for i := 0; i < 5; i++ {
		_, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Wrong123!", IP: "1.2.3.4"})
		if CodeOf(err) != CodeInvalidCredentials {
			t.Fatalf("attempt %d code = %q, want %q", i+1, CodeOf(err), CodeInvalidCredentials)
		}
	}

	_, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Secret123!", IP: "1.2.3.4"})
	if CodeOf(err) != CodeRateLimited {
		t.Errorf("limited address code = %q, want %q", CodeOf(err), CodeRateLimited)
	}
	if strings.Contains(err.Error(), "5") {
		t.Errorf("rate limit error reveals the threshold: %q", err.Error())
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Secret123!", IP: "5.6.7.8"}); err != nil {
		t.Errorf("other address Login() error = %v", err)
	}
}

func TestLogin_SuccessDoesNotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "Secret123!")

	for i := 0; i < 8; i++ {
		if _, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Secret123!", IP: "1.2.3.4"}); err != nil {
			t.Fatalf("Login() #%d error = %v", i+1, err)
		}
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.users.failFind = true

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "Secret123!", IP: "1.2.3.4"})
	if got := CodeOf(err); got != CodeStoreUnavailable {
		t.Errorf("CodeOf() = %q, want %q", got, CodeStoreUnavailable)
	}
	n, _ := f.limiter.Count(context.Background(), "1.2.3.4", 0, f.svc.now())
	if n != 0 {
		t.Errorf("store outage counted as failed attempt: count = %d", n)
	}
}

func TestLogin_MalformedInput(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name      string
		in        LoginInput
		wantField string
	}{
		{"no email", LoginInput{Password: "x"}, "email"},
		{"no password", LoginInput{Email: "a@b.com"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.in)
			if CodeOf(err) != CodeMalformedInput {
				t.Errorf("CodeOf() = %q, want %q", CodeOf(err), CodeMalformedInput)
			}
			if FieldOf(err) != tt.wantField {
				t.Errorf("FieldOf() = %q, want %q", FieldOf(err), tt.wantField)
			}
		})
	}
}

func TestLogin_AuditPersistFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@b.com", "Secret123!")
	f.users.failUpdateLog = true

	if _, err := f.svc.Login(context.Background(), LoginInput{Email: "a@b.com", Password: "Secret123!"}); err != nil {
		t.Errorf("Login() error = %v, want nil", err)
	}
}

func TestLogin_UpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy123!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error = %v", err)
	}
	if _, err := f.users.MemoryStore.Create(ctx, models.User{Email: "old@b.com", PasswordHash: string(legacy)}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := f.svc.Login(ctx, LoginInput{Email: "old@b.com", Password: "Legacy123!"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	stored, _ := f.users.FindByEmail(ctx, "old@b.com")
	if !strings.HasPrefix(stored.PasswordHash, "pbkdf2-sha256$") {
		t.Errorf("PasswordHash = %q, want upgraded pbkdf2 hash", stored.PasswordHash)
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: "old@b.com", Password: "Legacy123!"}); err != nil {
		t.Errorf("Login() after upgrade error = %v", err)
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "Secret123!")

	res, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "Secret123!"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := f.svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, ok := f.svc.Resolve(ctx, res.Token); ok {
		t.Error("Resolve() ok = true after Logout")
	}
	if err := f.svc.Logout(ctx, res.Token); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
}

func TestCodeOf_ForeignErrors(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q", got)
	}
	if got := ReasonOf(errors.New("plain")); got != "" {
		t.Errorf("ReasonOf(plain) = %q", got)
	}
}
