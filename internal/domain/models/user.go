// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role identifies where a user sits in the management hierarchy.
// An email maps to at most one role-account; login must name the
// matching role.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleCompanyAdmin   Role = "companyAdmin"
	RoleManager        Role = "manager"
	RoleProjectManager Role = "projectManager"
	RoleDeveloper      Role = "developer"
)

// AllRoles lists every valid role, in hierarchy order.
var AllRoles = []Role{RoleAdmin, RoleCompanyAdmin, RoleManager, RoleProjectManager, RoleDeveloper}

// IsValidRole reports whether value names a known role.
func IsValidRole(value string) bool {
	for _, r := range AllRoles {
		if string(r) == value {
			return true
		}
	}
	return false
}

// CanManageProjects reports whether the role may be assigned as a
// project manager.
func (r Role) CanManageProjects() bool {
	switch r {
	case RoleAdmin, RoleCompanyAdmin, RoleManager, RoleProjectManager:
		return true
	}
	return false
}

// User represents any account in the system, across all five roles.
//
// NOTE:
//   - PasswordHash is empty for Google-linked accounts; those must sign in
//     through Google.
//   - PasswordResetToken stores the sha256 hex of the raw token that was
//     emailed; the raw token is never persisted.
type User struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Email           string             `bson:"email" json:"email"`
	PhoneNumber     string             `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	PasswordHash    string             `bson:"password_hash,omitempty" json:"-"`
	Role            Role               `bson:"role" json:"role"`
	IsGoogleAccount bool               `bson:"is_google_account" json:"isGoogleAccount"`
	IsActive        bool               `bson:"is_active" json:"isActive"`
	ProfileImageURL string             `bson:"profile_image_url,omitempty" json:"profileImageUrl,omitempty"`
	AvatarPath      string             `bson:"avatar_path,omitempty" json:"-"`

	PasswordResetToken   string     `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"password_reset_expires,omitempty" json:"-"`

	StripeCustomerID string `bson:"stripe_customer_id,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Public returns the subset of user fields exposed in auth responses.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// PublicUser is the safe projection returned by login/signup endpoints.
type PublicUser struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Role  Role               `json:"role"`
}
