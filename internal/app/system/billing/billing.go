// Package billing wraps the payment provider behind a narrow interface
// so handlers stay testable and provider types do not leak into the
// rest of the application.
package billing

import (
	"context"

	"github.com/carverdev/projhub/internal/domain/models"
)

// Intent is the slice of a payment intent the onboarding flow needs.
type Intent struct {
	ID              string
	ClientSecret    string
	CustomerID      string
	PaymentMethodID string
	Status          string
}

// Subscription is the slice of a provider subscription we persist.
type Subscription struct {
	ID               string
	Status           string
	CurrentPeriodEnd int64 // unix seconds
}

// Card is the displayable summary of a stored payment method.
type Card struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// Gateway is everything the company feature needs from the payment
// provider. The live implementation is StripeGateway.
type Gateway interface {
	// EnsureCustomer returns a usable customer ID, reusing existingID
	// when it still points at a live customer and creating a fresh one
	// when it is empty or the customer was deleted upstream.
	EnsureCustomer(ctx context.Context, existingID, name, email string) (string, error)

	// CreatePaymentIntent opens a card payment for the plan's price,
	// saving the card for future off-session charges.
	CreatePaymentIntent(ctx context.Context, customerID string, plan models.PlanID) (*Intent, error)

	// RetrieveIntent loads an intent created earlier in the flow.
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)

	// AttachPaymentMethod binds the card to the customer. Attaching a
	// card that is already attached is not an error.
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// SetDefaultPaymentMethod makes the card the customer's default for
	// invoices.
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// CreateSubscription starts a recurring subscription on the plan's
	// price. The call is idempotent per attempt.
	CreateSubscription(ctx context.Context, customerID string, plan models.PlanID) (*Subscription, error)

	// GetSubscription fetches the current provider state.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// GetCard summarizes a stored payment method for display.
	GetCard(ctx context.Context, paymentMethodID string) (*Card, error)

	// ChangeSubscriptionPlan swaps the subscription onto another plan's
	// price with prorations.
	ChangeSubscriptionPlan(ctx context.Context, subscriptionID string, plan models.PlanID) (*Subscription, error)

	// CancelSubscription cancels immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
}

// PlanAmountCents returns the one-time setup charge for a plan in cents.
func PlanAmountCents(plan models.PlanID) int64 {
	switch plan {
	case models.PlanPro:
		return 2000
	case models.PlanBusiness:
		return 3000
	default:
		return 1500
	}
}
