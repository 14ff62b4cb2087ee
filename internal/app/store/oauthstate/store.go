package oauthstate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carverdev/projhub/internal/domain/models"
)

// StateTTL is how long a redirect has to come back before its state
// token lapses.
const StateTTL = 10 * time.Minute

// ErrInvalidState is returned when a callback presents an unknown or
// expired state token.
var ErrInvalidState = errors.New("invalid or expired oauth state")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Issue mints and persists a single-use state token.
func (s *Store) Issue(ctx context.Context, redirect string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now()
	doc := models.OAuthState{
		State:     state,
		Redirect:  redirect,
		ExpiresAt: now.Add(StateTTL),
		CreatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return state, nil
}

// Consume validates and deletes a state token in one step so it can
// never be replayed.
func (s *Store) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	var doc models.OAuthState
	err := s.c.FindOneAndDelete(ctx, bson.M{"state": state}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	if time.Now().After(doc.ExpiresAt) {
		return nil, ErrInvalidState
	}
	return &doc, nil
}

// CleanupExpired removes lapsed states. This is a backup for when
// MongoDB's TTL index cleanup is delayed.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
