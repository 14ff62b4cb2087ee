// internal/domain/models/oauthstate.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OAuthState is a single-use anti-forgery token minted when a Google
// sign-in redirect is issued and consumed on callback. A TTL index on
// ExpiresAt reaps states that never come back.
type OAuthState struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	State     string             `bson:"state"`
	Redirect  string             `bson:"redirect"`
	ExpiresAt time.Time          `bson:"expires_at"`
	CreatedAt time.Time          `bson:"created_at"`
}
