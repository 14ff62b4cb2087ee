package companystore_test

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	companystore "github.com/carverdev/projhub/internal/app/store/companies"
	"github.com/carverdev/projhub/internal/app/system/indexes"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/carverdev/projhub/internal/testutil"
)

func setup(t *testing.T) (*companystore.Store, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	return companystore.New(db), testutil.NewFixtures(t, db)
}

func TestCreateComputesLimits(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.Company{
		CompanyName:  "Acme Corp",
		CompanyAdmin: primitive.NewObjectID(),
		PlanID:       models.PlanPro,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := models.LimitsForPlan(models.PlanPro)
	if created.Limits != want {
		t.Errorf("limits = %+v, want %+v", created.Limits, want)
	}
	if created.LastEventAt.IsZero() {
		t.Error("last event timestamp not initialized")
	}
}

func TestCreateSecondCompanyForSameAdmin(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	if _, err := store.Create(ctx, models.Company{
		CompanyName:  "First Co",
		CompanyAdmin: admin,
		PlanID:       models.PlanBasic,
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := store.Create(ctx, models.Company{
		CompanyName:  "Second Co",
		CompanyAdmin: admin,
		PlanID:       models.PlanBasic,
	})
	if !errors.Is(err, companystore.ErrAlreadyOwner) {
		t.Fatalf("second create error = %v, want ErrAlreadyOwner", err)
	}
}

func TestApplySubscriptionEventOrdering(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	co := fx.CreateCompany(ctx, "Acme Corp", primitive.NewObjectID(), models.PlanBasic)

	newer := co.LastEventAt.Add(time.Hour)
	periodEnd := newer.Add(30 * 24 * time.Hour)
	if err := store.ApplySubscriptionEvent(ctx, co.ID, models.SubscriptionPastDue, periodEnd, newer); err != nil {
		t.Fatalf("apply newer event: %v", err)
	}

	got, err := store.GetByID(ctx, co.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SubscriptionStatus != models.SubscriptionPastDue {
		t.Errorf("status = %q, want %q", got.SubscriptionStatus, models.SubscriptionPastDue)
	}

	// A delivery older than the applied one must not roll state back.
	older := co.LastEventAt.Add(-time.Hour)
	err = store.ApplySubscriptionEvent(ctx, co.ID, models.SubscriptionActive, periodEnd, older)
	if !errors.Is(err, companystore.ErrStaleEvent) {
		t.Fatalf("apply older event error = %v, want ErrStaleEvent", err)
	}

	got, err = store.GetByID(ctx, co.ID)
	if err != nil {
		t.Fatalf("get after stale: %v", err)
	}
	if got.SubscriptionStatus != models.SubscriptionPastDue {
		t.Errorf("stale event changed status to %q", got.SubscriptionStatus)
	}
}

func TestApplySubscriptionEventMissingCompany(t *testing.T) {
	store, _ := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := store.ApplySubscriptionEvent(ctx, primitive.NewObjectID(),
		models.SubscriptionActive, time.Now(), time.Now())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("error = %v, want mongo.ErrNoDocuments", err)
	}
}

func TestChangePlanRecomputesLimits(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	co := fx.CreateCompany(ctx, "Acme Corp", primitive.NewObjectID(), models.PlanBasic)

	periodEnd := time.Now().Add(30 * 24 * time.Hour)
	updated, err := store.ChangePlan(ctx, co.ID, models.PlanBusiness, models.SubscriptionActive, periodEnd)
	if err != nil {
		t.Fatalf("change plan: %v", err)
	}

	if updated.PlanID != models.PlanBusiness {
		t.Errorf("plan = %q, want %q", updated.PlanID, models.PlanBusiness)
	}
	want := models.LimitsForPlan(models.PlanBusiness)
	if updated.Limits != want {
		t.Errorf("limits = %+v, want %+v", updated.Limits, want)
	}
}

func TestGetByAdmin(t *testing.T) {
	store, fx := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := primitive.NewObjectID()
	co := fx.CreateCompany(ctx, "Acme Corp", admin, models.PlanBasic)

	got, err := store.GetByAdmin(ctx, admin)
	if err != nil {
		t.Fatalf("get by admin: %v", err)
	}
	if got.ID != co.ID {
		t.Errorf("company = %s, want %s", got.ID.Hex(), co.ID.Hex())
	}

	if _, err := store.GetByAdmin(ctx, primitive.NewObjectID()); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("unknown admin error = %v, want mongo.ErrNoDocuments", err)
	}
}
