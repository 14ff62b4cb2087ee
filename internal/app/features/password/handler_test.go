package password

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	userstore "github.com/carverdev/projhub/internal/app/store/users"
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
	m := &stubMailer{}
	h := &Handler{
		Users:       userstore.New(db),
		Mailer:      m,
		Limiter:     ratelimit.NewLoginLimiter(),
		SiteName:    "ProjHub",
		FrontendURL: "https://app.example.com",
		Log:         zap.NewNop(),
	}
	return h, m, testutil.NewFixtures(t, db)
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// tokenFromEmail pulls the raw reset token out of the emailed link.
func tokenFromEmail(t *testing.T, e mailer.Email) string {
	t.Helper()
	m := regexp.MustCompile(`reset-password\?token=([A-Za-z0-9%_-]+)`).FindStringSubmatch(e.TextBody)
	if m == nil {
		t.Fatalf("no reset link in email body: %q", e.TextBody)
	}
	token, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}
	return token
}

func TestForgotIsNeutral(t *testing.T) {
	h, m, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleManager)

	known := httptest.NewRecorder()
	h.HandleForgot(known, postJSON("/forgot", `{"email": "dana@example.com"}`))

	unknown := httptest.NewRecorder()
	h.HandleForgot(unknown, postJSON("/forgot", `{"email": "nobody@example.com"}`))

	// Same status and body either way, so the endpoint cannot be used
	// to enumerate registered emails.
	if known.Code != unknown.Code {
		t.Errorf("status differs: known %d, unknown %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Errorf("body differs:\nknown:   %s\nunknown: %s", known.Body.String(), unknown.Body.String())
	}

	// But only the real account got an email.
	if len(m.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(m.sent))
	}
	if m.sent[0].To != "dana@example.com" {
		t.Errorf("email to %q", m.sent[0].To)
	}
}

func TestResetFlow(t *testing.T) {
	h, m, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleForgot(rec, postJSON("/forgot", `{"email": "dana@example.com"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot status = %d", rec.Code)
	}
	token := tokenFromEmail(t, m.sent[0])

	// The emailed token validates and identifies the account so the
	// frontend can greet the user on the reset form.
	rec = httptest.NewRecorder()
	h.HandleValidate(rec, postJSON("/validate", `{"token": "`+token+`"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); !strings.Contains(body, "Dana Ellis") || !strings.Contains(body, "dana@example.com") {
		t.Errorf("validate body = %s, want name and email", body)
	}

	rec = httptest.NewRecorder()
	h.HandleReset(rec, postJSON("/reset", `{"token": "`+token+`", "password": "brand new password"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body.String())
	}

	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("brand new password")); err != nil {
		t.Errorf("new password does not verify: %v", err)
	}

	// The token is single use.
	rec = httptest.NewRecorder()
	h.HandleReset(rec, postJSON("/reset", `{"token": "`+token+`", "password": "another password"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reused token status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestValidateGarbageToken(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleValidate(rec, postJSON("/validate", `{"token": "no-such-token"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Reset link is invalid.") {
		t.Errorf("body = %s, want invalid-link message", body)
	}
}

func TestExpiredTokenReportedAsExpired(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleManager)

	const raw = "stale-but-real-token"
	if err := h.Users.SetResetToken(ctx, u.ID, raw, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	for _, run := range []struct {
		name string
		call func(rec *httptest.ResponseRecorder)
	}{
		{"validate", func(rec *httptest.ResponseRecorder) {
			h.HandleValidate(rec, postJSON("/validate", `{"token": "`+raw+`"}`))
		}},
		{"reset", func(rec *httptest.ResponseRecorder) {
			h.HandleReset(rec, postJSON("/reset", `{"token": "`+raw+`", "password": "brand new password"}`))
		}},
	} {
		rec := httptest.NewRecorder()
		run.call(rec)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want %d", run.name, rec.Code, http.StatusBadRequest)
		}
		if body := rec.Body.String(); !strings.Contains(body, "Reset link has expired.") {
			t.Errorf("%s body = %s, want expired-link message", run.name, body)
		}
	}
}

func TestResetShortPassword(t *testing.T) {
	h, m, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleManager)

	rec := httptest.NewRecorder()
	h.HandleForgot(rec, postJSON("/forgot", `{"email": "dana@example.com"}`))
	token := tokenFromEmail(t, m.sent[0])

	rec = httptest.NewRecorder()
	h.HandleReset(rec, postJSON("/reset", `{"token": "`+token+`", "password": "short"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
