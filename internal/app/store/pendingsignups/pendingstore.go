package pendingstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/domain/models"
)

// SignupTTL is how long a staged signup waits for verification before
// it is discarded.
const SignupTTL = 30 * time.Minute

var (
	// ErrNotFound is returned when no staged signup exists for the email.
	ErrNotFound = errors.New("no pending signup for this email")

	// ErrExpired is returned when the staged signup has lapsed.
	ErrExpired = errors.New("pending signup has expired")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("pending_signups")}
}

// Stage upserts a pending signup keyed by email. Restarting the signup
// flow replaces the earlier attempt.
func (s *Store) Stage(ctx context.Context, p models.PendingSignup) error {
	now := time.Now()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"email": normalize.Email(p.Email)},
		bson.M{
			"$set": bson.M{
				"name":          normalize.Name(p.Name),
				"phone_number":  normalize.Phone(p.PhoneNumber),
				"password_hash": p.PasswordHash,
				"role":          p.Role,
				"expires_at":    now.Add(SignupTTL),
				"created_at":    now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get loads the staged signup for an email.
func (s *Store) Get(ctx context.Context, email string) (*models.PendingSignup, error) {
	var p models.PendingSignup
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p.Expired(time.Now()) {
		return nil, ErrExpired
	}
	return &p, nil
}

// Remove discards the staged signup once the account is created.
func (s *Store) Remove(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}

// CleanupExpired removes lapsed signups. This is a backup for when
// MongoDB's TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
