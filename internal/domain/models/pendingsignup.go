// internal/domain/models/pendingsignup.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingSignup stages a registration between the initiate and verify
// steps. The password is hashed before staging so the plaintext never
// touches storage. A TTL index on ExpiresAt discards abandoned signups,
// so a crash or restart never strands a half-registered user.
type PendingSignup struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PhoneNumber  string             `bson:"phone_number"`
	PasswordHash string             `bson:"password_hash"`
	Role         Role               `bson:"role"`
	ExpiresAt    time.Time          `bson:"expires_at"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// Expired reports whether the staged signup can no longer be completed.
func (p *PendingSignup) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
