// internal/domain/models/company.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanID names a subscription tier.
type PlanID string

const (
	PlanBasic    PlanID = "basic"
	PlanPro      PlanID = "pro"
	PlanBusiness PlanID = "business"
)

// IsValidPlan reports whether value names a known plan.
func IsValidPlan(value string) bool {
	switch PlanID(value) {
	case PlanBasic, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// SubscriptionStatus mirrors the provider-side subscription state.
type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionTrialing   SubscriptionStatus = "trialing"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// PlanLimits are the resource ceilings a plan grants.
type PlanLimits struct {
	MaxBranches            int `bson:"max_branches" json:"maxBranches"`
	MaxUsers               int `bson:"max_users" json:"maxUsers"`
	MaxMeetingParticipants int `bson:"max_meeting_participants" json:"maxMeetingParticipants"`
}

// LimitsForPlan returns the limits a plan grants. Limits are a pure
// function of the plan; unknown plans fall back to the basic tier.
func LimitsForPlan(plan PlanID) PlanLimits {
	switch plan {
	case PlanPro:
		return PlanLimits{MaxBranches: 3, MaxUsers: 30, MaxMeetingParticipants: 5}
	case PlanBusiness:
		return PlanLimits{MaxBranches: 5, MaxUsers: 50, MaxMeetingParticipants: 10}
	default:
		return PlanLimits{MaxBranches: 1, MaxUsers: 10, MaxMeetingParticipants: 3}
	}
}

// Address is the postal address embedded on a company document.
type Address struct {
	BuildingNo string `bson:"building_no" json:"buildingNo"`
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	Country    string `bson:"country" json:"country"`
	PostalCode string `bson:"postal_code" json:"postalCode"`
}

// Company is the paying tenant: one owning companyAdmin user, one
// provider subscription, and plan-derived limits.
//
// LastEventAt records the Created timestamp of the most recent provider
// webhook event applied to this document; older events are ignored so
// redelivered or out-of-order webhooks cannot roll the status back.
type Company struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	CompanyName   string  `bson:"company_name" json:"companyName"`
	CompanyType   string  `bson:"company_type" json:"companyType"`
	CompanyDomain string  `bson:"company_domain" json:"companyDomain"`
	PhoneNumber   string  `bson:"phone_number" json:"phoneNumber"`
	Address       Address `bson:"address" json:"address"`

	CompanyAdmin      primitive.ObjectID `bson:"company_admin" json:"companyAdmin"`
	AdminVerification bool               `bson:"admin_verification" json:"adminVerification"`

	PlanID               PlanID             `bson:"plan_id" json:"planId"`
	StripeCustomerID     string             `bson:"stripe_customer_id" json:"-"`
	StripeSubscriptionID string             `bson:"stripe_subscription_id" json:"-"`
	PaymentMethodID      string             `bson:"payment_method_id" json:"-"`
	SubscriptionStatus   SubscriptionStatus `bson:"subscription_status" json:"subscriptionStatus"`
	CurrentPeriodEnd     time.Time          `bson:"current_period_end" json:"currentPeriodEnd"`

	Limits PlanLimits `bson:"limits" json:"limits"`

	LastEventAt time.Time `bson:"last_event_at,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ApplyPlan sets PlanID and recomputes the derived limits.
func (c *Company) ApplyPlan(plan PlanID) {
	c.PlanID = plan
	c.Limits = LimitsForPlan(plan)
}
