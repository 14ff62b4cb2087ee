package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/indexes"
	"github.com/carverdev/projhub/internal/app/system/mailer"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/carverdev/projhub/internal/testutil"
)

// stubMailer records outgoing email and can be told to fail.
type stubMailer struct {
	sent []mailer.Email
	err  error
}

func (m *stubMailer) Send(ctx context.Context, e mailer.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *stubMailer, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	m := &stubMailer{}
	h := &Handler{
		Users:       userstore.New(db),
		Mailer:      m,
		SiteName:    "ProjHub",
		FrontendURL: "https://app.example.com",
		Log:         zap.NewNop(),
	}
	return h, m, testutil.NewFixtures(t, db)
}

func TestCreateSendsSetupEmail(t *testing.T) {
	h, m, fx := newTestHandler(t)

	body := `{"name": "Devon Reyes", "email": "devon@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleCreate(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	if len(m.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(m.sent))
	}
	if m.sent[0].To != "devon@example.com" {
		t.Errorf("email to %q", m.sent[0].To)
	}
	if !strings.Contains(m.sent[0].HTMLBody, "/set-password?token=") {
		t.Error("setup email has no password setup link")
	}

	// A second create on the same email is rejected and sends nothing.
	rec = httptest.NewRecorder()
	h.handleCreate(models.RoleDeveloper)(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Email already in use") {
		t.Errorf("duplicate body = %s", rec.Body.String())
	}
	if len(m.sent) != 1 {
		t.Errorf("sent %d emails after duplicate, want 1", len(m.sent))
	}

	// The account exists with the targeted role and a reset token.
	ctx, cancel := testutil.TestContext()
	defer cancel()
	var u models.User
	if err := fx.DB().Collection("users").FindOne(ctx, bson.M{"email": "devon@example.com"}).Decode(&u); err != nil {
		t.Fatalf("created user missing: %v", err)
	}
	if u.Role != models.RoleDeveloper {
		t.Errorf("role = %q, want %q", u.Role, models.RoleDeveloper)
	}
	if u.PasswordResetToken == "" {
		t.Error("no setup token stored")
	}
}

func TestCreateRemovesAccountWhenEmailFails(t *testing.T) {
	h, m, fx := newTestHandler(t)
	m.err = errors.New("smtp connection refused")

	body := `{"name": "Devon Reyes", "email": "devon@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleCreate(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := fx.DB().Collection("users").CountDocuments(ctx, bson.M{"email": "devon@example.com"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("account survived a failed invitation email")
	}
}

func TestCreateRejectsBadEmail(t *testing.T) {
	h, _, _ := newTestHandler(t)

	body := `{"name": "Devon Reyes", "email": "not-an-address"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.handleCreate(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetScopedToRole(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	manager := fx.CreateUser(ctx, "Morgan Lee", "morgan@example.com", models.RoleManager)

	// Asking the developer directory for a manager id must 404.
	req := testutil.WithChiURLParam(
		httptest.NewRequest(http.MethodGet, "/"+manager.ID.Hex(), nil),
		"id", manager.ID.Hex())
	rec := httptest.NewRecorder()
	h.handleGet(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-role get status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	req = testutil.WithChiURLParam(
		httptest.NewRequest(http.MethodGet, "/"+manager.ID.Hex(), nil),
		"id", manager.ID.Hex())
	rec = httptest.NewRecorder()
	h.handleGet(models.RoleManager)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("same-role get status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestToggleDeactivates(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dev := fx.CreateUser(ctx, "Devon Reyes", "devon@example.com", models.RoleDeveloper)

	req := testutil.WithChiURLParam(
		httptest.NewRequest(http.MethodPatch, "/"+dev.ID.Hex()+"/toggle",
			strings.NewReader(`{"isActive": false}`)),
		"id", dev.ID.Hex())
	rec := httptest.NewRecorder()
	h.handleToggle(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		IsActive bool `json:"isActive"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IsActive {
		t.Error("account still active after toggle off")
	}
}

func TestListReturnsOnlyRole(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Dev One", "dev1@example.com", models.RoleDeveloper)
	fx.CreateUser(ctx, "Dev Two", "dev2@example.com", models.RoleDeveloper)
	fx.CreateUser(ctx, "Morgan Lee", "morgan@example.com", models.RoleManager)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.handleList(models.RoleDeveloper)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Users []models.PublicUser `json:"users"`
		Meta  struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 2 || resp.Meta.Total != 2 {
		t.Fatalf("got %d users (total %d), want 2", len(resp.Users), resp.Meta.Total)
	}
	for _, u := range resp.Users {
		if u.Role != models.RoleDeveloper {
			t.Errorf("listing leaked a %q account", u.Role)
		}
	}
}

func TestCompanyAdminSurfaceGating(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fx.CreateUser(ctx, "Ada Root", "ada@example.com", models.RoleAdmin)
	manager := fx.CreateUser(ctx, "Morgan Pike", "morgan@example.com", models.RoleManager)
	fx.CreateUser(ctx, "Casey Vaughn", "casey@example.com", models.RoleCompanyAdmin)

	router := Routes(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/companyadmins", nil), &admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Users []models.PublicUser `json:"users"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Email != "casey@example.com" {
		t.Fatalf("users = %+v, want only the company admin", resp.Users)
	}

	// Anyone below platform admin is locked out of this segment.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/companyadmins", nil), &manager))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager list status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
