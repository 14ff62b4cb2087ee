package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	otpstore "github.com/carverdev/projhub/internal/app/store/otps"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/app/system/ratelimit"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/carverdev/projhub/internal/testutil"
)

type stubMailer struct {
	sent []mailer.Email
}

func (m *stubMailer) Send(ctx context.Context, e mailer.Email) error {
	m.sent = append(m.sent, e)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *stubMailer, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	tokens, err := sysauth.NewManager("test-secret-0123456789-0123456789-xyz", zap.NewNop())
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}

	m := &stubMailer{}
	h := &Handler{
		Users:    userstore.New(db),
		Pending:  pendingstore.New(db),
		OTPs:     otpstore.New(db),
		Mailer:   m,
		Tokens:   tokens,
		Limiter:  ratelimit.NewLoginLimiter(),
		SiteName: "ProjHub",
		Log:      zap.NewNop(),
	}
	return h, m, testutil.NewFixtures(t, db)
}

func createLoginUser(t *testing.T, h *Handler, email, password string, role models.Role) models.User {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u, err := h.Users.Create(ctx, models.User{
		Name:         "Dana Ellis",
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginSuccess(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "Dana@Example.com", "password": "correct horse battery", "role": "manager"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			Role models.Role `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatal("login response missing token")
	}
	if resp.User.Role != models.RoleManager {
		t.Errorf("role = %q, want %q", resp.User.Role, models.RoleManager)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "dana@example.com", "password": "wrong", "role": "manager"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLoginUnknownEmailSameAsWrongPassword(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "nobody@example.com", "password": "whatever", "role": "manager"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "Invalid credentials") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestLoginRoleMismatch(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "dana@example.com", "password": "correct horse battery", "role": "developer"}`))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestLoginRejectsBadRole(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	for _, body := range []string{
		`{"email": "dana@example.com", "password": "correct horse battery", "role": "superuser"}`,
		`{"email": "dana@example.com", "password": "correct horse battery"}`,
	} {
		rec := httptest.NewRecorder()
		h.HandleLogin(rec, postJSON("/", body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestLoginRoleMismatchBeatsWrongPassword(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "dana@example.com", "password": "wrong", "role": "developer"}`))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	h, _, _ := newTestHandler(t)
	u := createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := h.Users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, postJSON("/", `{"email": "dana@example.com", "password": "correct horse battery", "role": "manager"}`))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

// otpFromEmail digs the six digit code out of the sent message.
func otpFromEmail(t *testing.T, e mailer.Email) string {
	t.Helper()
	m := regexp.MustCompile(`\b(\d{6})\b`).FindStringSubmatch(e.TextBody)
	if m == nil {
		t.Fatalf("no code in email body: %q", e.TextBody)
	}
	return m[1]
}

func TestSignupFlow(t *testing.T) {
	h, m, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleSignupInitiate(rec, postJSON("/signup/initiate",
		`{"name": "Dana Ellis", "email": "dana@example.com", "password": "longenough", "role": "companyAdmin"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("initiate status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(m.sent))
	}
	code := otpFromEmail(t, m.sent[0])

	rec = httptest.NewRecorder()
	h.HandleSignupVerify(rec, postJSON("/signup/verify",
		`{"email": "dana@example.com", "otp": "`+code+`"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("no token after verification")
	}

	// The account is live and the staged signup is gone, so a replayed
	// verification fails.
	rec = httptest.NewRecorder()
	h.HandleSignupVerify(rec, postJSON("/signup/verify",
		`{"email": "dana@example.com", "otp": "`+code+`"}`))
	if rec.Code == http.StatusCreated {
		t.Fatal("verification replay created a second account")
	}
}

func TestSignupInitiateExistingEmail(t *testing.T) {
	h, _, _ := newTestHandler(t)
	createLoginUser(t, h, "dana@example.com", "correct horse battery", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleSignupInitiate(rec, postJSON("/signup/initiate",
		`{"name": "Dana Ellis", "email": "dana@example.com", "password": "longenough", "role": "companyAdmin"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Email already in use") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSignupVerifyWrongCode(t *testing.T) {
	h, m, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleSignupInitiate(rec, postJSON("/signup/initiate",
		`{"name": "Dana Ellis", "email": "dana@example.com", "password": "longenough", "role": "companyAdmin"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("initiate status = %d", rec.Code)
	}

	code := otpFromEmail(t, m.sent[0])
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	rec = httptest.NewRecorder()
	h.HandleSignupVerify(rec, postJSON("/signup/verify",
		`{"email": "dana@example.com", "otp": "`+wrong+`"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
