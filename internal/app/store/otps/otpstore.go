package otpstore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/domain/models"
)

// CodeTTL is how long a verification code stays redeemable.
const CodeTTL = 10 * time.Minute

var (
	// ErrNotFound is returned when no code exists for the email.
	ErrNotFound = errors.New("no verification code for this email")

	// ErrExpired is returned when the code exists but has lapsed.
	ErrExpired = errors.New("verification code has expired")

	// ErrMismatch is returned when the supplied code is wrong.
	ErrMismatch = errors.New("verification code does not match")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("otps")}
}

// GenerateCode produces a 6-digit numeric code using crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates or replaces the code for an email and returns it.
// Re-sends replace the previous code rather than stacking codes.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	now := time.Now()
	_, err = s.c.UpdateOne(ctx,
		bson.M{"email": normalize.Email(email)},
		bson.M{
			"$set": bson.M{
				"code":       code,
				"expires_at": now.Add(CodeTTL),
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", err
	}
	return code, nil
}

// Redeem verifies the code for an email and deletes it on success so a
// code can only be used once.
func (s *Store) Redeem(ctx context.Context, email, code string) error {
	var otp models.OTP
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&otp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}

	if otp.Expired(time.Now()) {
		return ErrExpired
	}
	if otp.Code != code {
		return ErrMismatch
	}

	_, err = s.c.DeleteOne(ctx, bson.M{"_id": otp.ID})
	return err
}

// Discard drops any outstanding code for an email.
func (s *Store) Discard(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"email": normalize.Email(email)})
	return err
}
