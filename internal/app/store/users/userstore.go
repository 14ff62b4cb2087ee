package userstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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
	return &Store{c: db.Collection("users")}
}

var (
	// ErrDuplicateEmail is returned when attempting to create a user
	// with an email that already exists.
	ErrDuplicateEmail = errors.New("email already in use")
	errBadRole        = errors.New(`role must be "admin"|"companyAdmin"|"manager"|"projectManager"|"developer"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ByID satisfies the auth middleware's fetcher with a hex string ID.
func (s *Store) ByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, oid)
}

// GetByEmail looks up a user by normalized email. Returns
// mongo.ErrNoDocuments if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDAndRole loads a user only when they hold the given role. Used
// by the per-role directory endpoints so a manager's ID pasted into the
// developers URL does not leak the record.
func (s *Store) GetByIDAndRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "role": role}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether any account uses the email.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	return n > 0, err
}

// Create inserts a new user after normalizing fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = normalize.Name(u.Name)
	u.Email = normalize.Email(u.Email)
	u.PhoneNumber = normalize.Phone(u.PhoneNumber)

	if !models.IsValidRole(string(u.Role)) {
		return models.User{}, errBadRole
	}

	u.IsActive = true
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// ListByRole returns a page of users holding the given role, newest
// first, and the total count for pagination metadata.
func (s *Store) ListByRole(ctx context.Context, role models.Role, skip, limit int64) ([]models.User, int64, error) {
	filter := bson.M{"role": role}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ProfileUpdate holds the self-service editable fields. Nil pointers
// leave the stored value untouched.
type ProfileUpdate struct {
	Name            *string
	Email           *string
	PhoneNumber     *string
	ProfileImageURL *string
	AvatarPath      *string
}

// UpdateProfile applies a partial self-service update. An email change
// that collides with another account returns ErrDuplicateEmail.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Name != nil {
		set["name"] = normalize.Name(*upd.Name)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.PhoneNumber != nil {
		set["phone_number"] = normalize.Phone(*upd.PhoneNumber)
	}
	if upd.ProfileImageURL != nil {
		set["profile_image_url"] = *upd.ProfileImageURL
	}
	if upd.AvatarPath != nil {
		set["avatar_path"] = *upd.AvatarPath
	}

	after := options.After
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// DirectoryUpdate holds the fields an admin can edit on someone else's
// account.
type DirectoryUpdate struct {
	Name        *string
	Email       *string
	PhoneNumber *string
}

// UpdateByIDAndRole applies a directory edit, scoped to the role the
// calling endpoint manages.
func (s *Store) UpdateByIDAndRole(ctx context.Context, id primitive.ObjectID, role models.Role, upd DirectoryUpdate) (*models.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Name != nil {
		set["name"] = normalize.Name(*upd.Name)
	}
	if upd.Email != nil {
		set["email"] = normalize.Email(*upd.Email)
	}
	if upd.PhoneNumber != nil {
		set["phone_number"] = normalize.Phone(*upd.PhoneNumber)
	}

	after := options.After
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "role": role},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &u, nil
}

// DeleteByIDAndRole removes an account, scoped to the role the calling
// endpoint manages. Returns mongo.ErrNoDocuments when nothing matched.
func (s *Store) DeleteByIDAndRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "role": role})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes an account unconditionally. Used to compensate when a
// directory creation cannot deliver its invitation email.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SetActive toggles the account on or off.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) (*models.User, error) {
	after := options.After
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetRole promotes or demotes an account. Used when company onboarding
// completes and the owner becomes a companyAdmin.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	if !models.IsValidRole(string(role)) {
		return errBadRole
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"role": role, "updated_at": time.Now()},
	})
	return err
}

// SetStripeCustomerID records the provider customer bound to this user.
func (s *Store) SetStripeCustomerID(ctx context.Context, id primitive.ObjectID, customerID string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"stripe_customer_id": customerID, "updated_at": time.Now()},
	})
	return err
}

// SetPassword stores a new bcrypt hash and clears any outstanding reset
// token so the link cannot be replayed.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"password_hash": passwordHash, "updated_at": time.Now()},
		"$unset": bson.M{
			"password_reset_token":   "",
			"password_reset_expires": "",
		},
	})
	return err
}

// HashResetToken derives the stored form of a reset token. Only the
// hash is persisted; the raw token travels by email.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SetResetToken stores the hashed reset token with its expiry.
func (s *Store) SetResetToken(ctx context.Context, id primitive.ObjectID, rawToken string, expires time.Time) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"password_reset_token":   HashResetToken(rawToken),
			"password_reset_expires": expires,
			"updated_at":             time.Now(),
		},
	})
	return err
}

// GetByResetToken finds the account holding a reset token, expired or
// not. Callers check PasswordResetExpires so expired links can be
// reported separately from unknown ones.
func (s *Store) GetByResetToken(ctx context.Context, rawToken string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{
		"password_reset_token": HashResetToken(rawToken),
	}).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
