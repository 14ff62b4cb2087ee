package companystore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("companies")}
}

var (
	// ErrAlreadyOwner is returned when the admin already has a company.
	ErrAlreadyOwner = errors.New("this account already owns a company")

	// ErrStaleEvent is returned when a webhook event is older than the
	// last one applied to the company.
	ErrStaleEvent = errors.New("event is older than the last applied event")
)

// Create inserts a fully-onboarded company with plan limits computed
// from its plan.
func (s *Store) Create(ctx context.Context, co models.Company) (models.Company, error) {
	co.ID = primitive.NewObjectID()
	co.CompanyName = normalize.Name(co.CompanyName)
	co.Limits = models.LimitsForPlan(co.PlanID)

	now := time.Now()
	co.CreatedAt = now
	co.UpdatedAt = now
	if co.LastEventAt.IsZero() {
		co.LastEventAt = now
	}

	if _, err := s.c.InsertOne(ctx, co); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Company{}, ErrAlreadyOwner
		}
		return models.Company{}, err
	}
	return co, nil
}

// GetByID loads a company by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Company, error) {
	var co models.Company
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&co); err != nil {
		return nil, err
	}
	return &co, nil
}

// GetByAdmin loads the company owned by the given account.
func (s *Store) GetByAdmin(ctx context.Context, adminID primitive.ObjectID) (*models.Company, error) {
	var co models.Company
	if err := s.c.FindOne(ctx, bson.M{"company_admin": adminID}).Decode(&co); err != nil {
		return nil, err
	}
	return &co, nil
}

// GetBySubscriptionID resolves a webhook event to its company.
func (s *Store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Company, error) {
	var co models.Company
	if err := s.c.FindOne(ctx, bson.M{"stripe_subscription_id": subscriptionID}).Decode(&co); err != nil {
		return nil, err
	}
	return &co, nil
}

// List returns a page of companies, newest first, with the total count.
func (s *Store) List(ctx context.Context, skip, limit int64) ([]models.Company, int64, error) {
	total, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Company
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DetailsUpdate holds the editable company profile fields. Nil pointers
// leave stored values untouched.
type DetailsUpdate struct {
	CompanyName   *string
	CompanyType   *string
	CompanyDomain *string
	PhoneNumber   *string
	Address       *models.Address
}

// UpdateDetails applies a partial profile edit.
func (s *Store) UpdateDetails(ctx context.Context, id primitive.ObjectID, upd DetailsUpdate) (*models.Company, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.CompanyName != nil {
		set["company_name"] = normalize.Name(*upd.CompanyName)
	}
	if upd.CompanyType != nil {
		set["company_type"] = normalize.Name(*upd.CompanyType)
	}
	if upd.CompanyDomain != nil {
		set["company_domain"] = normalize.Name(*upd.CompanyDomain)
	}
	if upd.PhoneNumber != nil {
		set["phone_number"] = normalize.Phone(*upd.PhoneNumber)
	}
	if upd.Address != nil {
		set["address"] = *upd.Address
	}

	after := options.After
	var co models.Company
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&co)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

// ChangePlan moves the company onto a new plan, recomputing limits and
// recording the new subscription state.
func (s *Store) ChangePlan(ctx context.Context, id primitive.ObjectID, plan models.PlanID, status models.SubscriptionStatus, periodEnd time.Time) (*models.Company, error) {
	limits := models.LimitsForPlan(plan)

	after := options.After
	var co models.Company
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"plan_id":             plan,
			"limits":              limits,
			"subscription_status": status,
			"current_period_end":  periodEnd,
			"updated_at":          time.Now(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&co)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

// ApplySubscriptionEvent overwrites subscription status and period end,
// but only when eventAt is not older than the last applied event. Out of
// order webhook deliveries would otherwise resurrect stale state.
func (s *Store) ApplySubscriptionEvent(ctx context.Context, id primitive.ObjectID, status models.SubscriptionStatus, periodEnd time.Time, eventAt time.Time) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":           id,
			"last_event_at": bson.M{"$lte": eventAt},
		},
		bson.M{"$set": bson.M{
			"subscription_status": status,
			"current_period_end":  periodEnd,
			"last_event_at":       eventAt,
			"updated_at":          time.Now(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the company vanished or a newer event already landed.
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrStaleEvent
	}
	return nil
}

// SetVerification flips the admin verification flag.
func (s *Store) SetVerification(ctx context.Context, id primitive.ObjectID, verified bool) (*models.Company, error) {
	after := options.After
	var co models.Company
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"admin_verification": verified, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&co)
	if err != nil {
		return nil, err
	}
	return &co, nil
}

// SetPaymentMethod records a replacement default card.
func (s *Store) SetPaymentMethod(ctx context.Context, id primitive.ObjectID, paymentMethodID string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"payment_method_id": paymentMethodID, "updated_at": time.Now()},
	})
	return err
}

// Delete removes a company.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
