// internal/domain/models/otp.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTP is a short-lived one-time code emailed during signup verification.
// A TTL index on ExpiresAt reaps stale codes.
type OTP struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Code      string             `bson:"code"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}

// Expired reports whether the code is no longer redeemable.
func (o *OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
