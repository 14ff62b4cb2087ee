package company

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	companystore "github.com/carverdev/projhub/internal/app/store/companies"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/app/system/billing"
	"github.com/carverdev/projhub/internal/app/system/indexes"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/carverdev/projhub/internal/testutil"
)

// fakeGateway scripts the payment provider for tests.
type fakeGateway struct {
	intent       *billing.Intent
	subscription *billing.Subscription

	attached     []string
	defaulted    []string
	subscribed   []models.PlanID
	canceledSubs []string
}

func (g *fakeGateway) EnsureCustomer(ctx context.Context, existingID, name, email string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	return "cus_test", nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, customerID string, plan models.PlanID) (*billing.Intent, error) {
	return &billing.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", CustomerID: customerID, Status: "requires_payment_method"}, nil
}

func (g *fakeGateway) RetrieveIntent(ctx context.Context, intentID string) (*billing.Intent, error) {
	return g.intent, nil
}

func (g *fakeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	g.attached = append(g.attached, paymentMethodID)
	return nil
}

func (g *fakeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	g.defaulted = append(g.defaulted, paymentMethodID)
	return nil
}

func (g *fakeGateway) CreateSubscription(ctx context.Context, customerID string, plan models.PlanID) (*billing.Subscription, error) {
	g.subscribed = append(g.subscribed, plan)
	return g.subscription, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	return g.subscription, nil
}

func (g *fakeGateway) GetCard(ctx context.Context, paymentMethodID string) (*billing.Card, error) {
	return &billing.Card{Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2031}, nil
}

func (g *fakeGateway) ChangeSubscriptionPlan(ctx context.Context, subscriptionID string, plan models.PlanID) (*billing.Subscription, error) {
	g.subscribed = append(g.subscribed, plan)
	return g.subscription, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	g.canceledSubs = append(g.canceledSubs, subscriptionID)
	canceled := *g.subscription
	canceled.Status = "canceled"
	return &canceled, nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeGateway, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	g := &fakeGateway{
		intent: &billing.Intent{
			ID:              "pi_test",
			CustomerID:      "cus_test",
			PaymentMethodID: "pm_test",
			Status:          "succeeded",
		},
		subscription: &billing.Subscription{
			ID:               "sub_test",
			Status:           "active",
			CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).Unix(),
		},
	}
	h := &Handler{
		Companies: companystore.New(db),
		Users:     userstore.New(db),
		Billing:   g,
		Log:       zap.NewNop(),
	}
	return h, g, testutil.NewFixtures(t, db)
}

func completeBody() string {
	return `{
		"paymentIntentId": "pi_test",
		"planId": "pro",
		"companyName": "Acme Corp",
		"companyType": "LLC",
		"companyDomain": "acme.example",
		"phoneNumber": "555-0101",
		"address": {
			"buildingNo": "12",
			"street": "1 Main St",
			"city": "Springfield",
			"state": "IL",
			"country": "US",
			"postalCode": "62701"
		}
	}`
}

func completeRequestFor(t *testing.T, u *models.User) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/complete", strings.NewReader(completeBody()))
	req.Header.Set("Content-Type", "application/json")
	return testutil.WithUser(req, u)
}

func TestRequireBillingWithoutGateway(t *testing.T) {
	h := &Handler{Log: zap.NewNop()}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without a configured gateway")
	})
	rec := httptest.NewRecorder()
	h.requireBilling(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payment-intent", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestCompletePromotesAndPersists(t *testing.T) {
	h, g, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleDeveloper)

	rec := httptest.NewRecorder()
	h.HandleComplete(rec, completeRequestFor(t, &u))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// Card attached, made default, subscription opened on the right plan.
	if len(g.attached) != 1 || g.attached[0] != "pm_test" {
		t.Errorf("attached = %v", g.attached)
	}
	if len(g.defaulted) != 1 || g.defaulted[0] != "pm_test" {
		t.Errorf("defaulted = %v", g.defaulted)
	}
	if len(g.subscribed) != 1 || g.subscribed[0] != models.PlanPro {
		t.Errorf("subscribed = %v", g.subscribed)
	}

	var resp struct {
		Company models.Company `json:"company"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Company.PlanID != models.PlanPro {
		t.Errorf("plan = %q, want %q", resp.Company.PlanID, models.PlanPro)
	}
	if want := models.LimitsForPlan(models.PlanPro); resp.Company.Limits != want {
		t.Errorf("limits = %+v, want %+v", resp.Company.Limits, want)
	}

	// The owner is now a companyAdmin.
	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.Role != models.RoleCompanyAdmin {
		t.Errorf("role = %q, want %q", got.Role, models.RoleCompanyAdmin)
	}
}

func TestCompleteRejectsSecondCompany(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleCompanyAdmin)
	fx.CreateCompany(ctx, "Existing Co", u.ID, models.PlanBasic)

	rec := httptest.NewRecorder()
	h.HandleComplete(rec, completeRequestFor(t, &u))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCompleteRequiresSucceededPayment(t *testing.T) {
	h, g, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleDeveloper)
	g.intent.Status = "requires_payment_method"

	rec := httptest.NewRecorder()
	h.HandleComplete(rec, completeRequestFor(t, &u))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(g.subscribed) != 0 {
		t.Error("subscription opened for an unpaid intent")
	}
}

func TestCompleteRequiresFullCompanyDetails(t *testing.T) {
	h, g, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleDeveloper)

	body := `{
		"paymentIntentId": "pi_test",
		"planId": "pro",
		"companyName": "Acme Corp",
		"address": {"street": "1 Main St"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.HandleComplete(rec, testutil.WithUser(req, &u))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	for _, field := range []string{"companyType", "companyDomain", "phoneNumber", "address.city", "address.postalCode"} {
		if !strings.Contains(rec.Body.String(), `"`+field+`"`) {
			t.Errorf("body = %s, missing %s field error", rec.Body.String(), field)
		}
	}
	if len(g.subscribed) != 0 {
		t.Error("subscription opened for an invalid request")
	}
}

func TestVerifyOpenToCompanyAdmins(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateUser(ctx, "Casey Owner", "casey@example.com", models.RoleCompanyAdmin)
	co := fx.CreateCompany(ctx, "Acme Corp", owner.ID, models.PlanPro)
	router := Routes(h)

	patch := func(u *models.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/"+co.ID.Hex()+"/verify", strings.NewReader(`{"verified": true}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, testutil.WithUser(req, u))
		return rec
	}

	if rec := patch(&owner); rec.Code != http.StatusOK {
		t.Fatalf("companyAdmin verify status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	manager := fx.CreateUser(ctx, "Morgan Manager", "morgan@example.com", models.RoleManager)
	if rec := patch(&manager); rec.Code != http.StatusForbidden {
		t.Errorf("manager verify status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestPaymentIntentPersistsCustomer(t *testing.T) {
	h, _, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Dana Ellis", "dana@example.com", models.RoleDeveloper)

	req := httptest.NewRequest(http.MethodPost, "/payment-intent", strings.NewReader(`{"planId": "basic"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePaymentIntent(rec, testutil.WithUser(req, &u))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		ClientSecret string `json:"clientSecret"`
		Amount       int64  `json:"amount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ClientSecret == "" {
		t.Error("no client secret returned")
	}
	if resp.Amount != billing.PlanAmountCents(models.PlanBasic) {
		t.Errorf("amount = %d, want %d", resp.Amount, billing.PlanAmountCents(models.PlanBasic))
	}

	got, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.StripeCustomerID != "cus_test" {
		t.Errorf("customer id = %q, want cus_test", got.StripeCustomerID)
	}
}
