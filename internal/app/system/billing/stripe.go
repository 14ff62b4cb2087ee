// internal/app/system/billing/stripe.go
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/domain/models"
)

// StripeGateway is the live Gateway implementation.
type StripeGateway struct {
	sc     *client.API
	prices map[models.PlanID]string
	log    *zap.Logger
}

// NewStripeGateway builds a gateway from the secret key and the
// per-plan recurring price IDs configured in the dashboard.
func NewStripeGateway(secretKey string, prices map[models.PlanID]string, logger *zap.Logger) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	for _, plan := range []models.PlanID{models.PlanBasic, models.PlanPro, models.PlanBusiness} {
		if prices[plan] == "" {
			return nil, fmt.Errorf("no stripe price configured for plan %q", plan)
		}
	}

	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeGateway{sc: sc, prices: prices, log: logger}, nil
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, existingID, name, email string) (string, error) {
	if existingID != "" {
		cust, err := g.sc.Customers.Get(existingID, &stripe.CustomerParams{
			Params: stripe.Params{Context: ctx},
		})
		if err == nil && !cust.Deleted {
			return cust.ID, nil
		}
		// Deleted upstream or unknown; fall through and mint a new one.
		g.log.Warn("stored stripe customer unusable, creating a new one",
			zap.String("customer_id", existingID),
			zap.Error(err))
	}

	cust, err := g.sc.Customers.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Name:   stripe.String(name),
		Email:  stripe.String(email),
	})
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, customerID string, plan models.PlanID) (*Intent, error) {
	pi, err := g.sc.PaymentIntents.New(&stripe.PaymentIntentParams{
		Params:             stripe.Params{Context: ctx},
		Amount:             stripe.Int64(PlanAmountCents(plan)),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SetupFutureUsage:   stripe.String(string(stripe.PaymentIntentSetupFutureUsageOffSession)),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.sc.PaymentIntents.Get(intentID, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	_, err := g.sc.PaymentMethods.Attach(paymentMethodID, &stripe.PaymentMethodAttachParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
	})
	if err != nil && !isAlreadyAttached(err) {
		return fmt.Errorf("attach payment method: %w", err)
	}
	return nil
}

func (g *StripeGateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	_, err := g.sc.Customers.Update(customerID, &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	})
	if err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}
	return nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, customerID string, plan models.PlanID) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(g.prices[plan])},
		},
	}
	// A retry after a network hiccup must not double-bill.
	params.SetIdempotencyKey(uuid.NewString())

	sub, err := g.sc.Subscriptions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	sub, err := g.sc.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) GetCard(ctx context.Context, paymentMethodID string) (*Card, error) {
	pm, err := g.sc.PaymentMethods.Get(paymentMethodID, &stripe.PaymentMethodParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve payment method: %w", err)
	}
	if pm.Card == nil {
		return nil, errors.New("payment method is not a card")
	}
	return &Card{
		Brand:    string(pm.Card.Brand),
		Last4:    pm.Card.Last4,
		ExpMonth: pm.Card.ExpMonth,
		ExpYear:  pm.Card.ExpYear,
	}, nil
}

func (g *StripeGateway) ChangeSubscriptionPlan(ctx context.Context, subscriptionID string, plan models.PlanID) (*Subscription, error) {
	current, err := g.sc.Subscriptions.Get(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("subscription %s has no items", subscriptionID)
	}

	sub, err := g.sc.Subscriptions.Update(subscriptionID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(g.prices[plan]),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	})
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	sub, err := g.sc.Subscriptions.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	return subscriptionFromStripe(sub), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	out := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
	}
	return out
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	return &Subscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
}

func isAlreadyAttached(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return strings.Contains(se.Msg, "already been attached")
	}
	return false
}
