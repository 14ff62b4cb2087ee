// Package webhook ingests payment provider events and folds them into
// the stored subscription state. Deliveries can arrive late, repeated
// or out of order; the store's event ordering guard keeps stale
// deliveries from overwriting newer state.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	companystore "github.com/carverdev/projhub/internal/app/store/companies"
	"github.com/carverdev/projhub/internal/app/system/billing"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// maxPayloadBytes bounds the webhook body read.
const maxPayloadBytes = 64 * 1024

// CompanyStore is the slice of the companies store the webhook needs.
type CompanyStore interface {
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Company, error)
	ApplySubscriptionEvent(ctx context.Context, id primitive.ObjectID, status models.SubscriptionStatus, periodEnd time.Time, eventAt time.Time) error
}

// SubscriptionFetcher refetches provider state after a payment event.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error)
}

type Handler struct {
	Companies CompanyStore
	Billing   SubscriptionFetcher
	Secret    string
	Log       *zap.Logger
}

// HandleWebhook handles POST /api/webhooks/stripe.
//
// The provider retries until it sees 2xx, so everything after a valid
// signature answers 200: a stale or unmatchable event will not become
// correct through retrying.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "read failure", http.StatusBadRequest)
		return
	}

	event, err := stripewebhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.Secret)
	if err != nil {
		h.Log.Warn("webhook: signature rejected", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "webhook "+string(event.Type))
	defer cancel()

	switch event.Type {
	case "customer.subscription.updated":
		err = h.applySubscriptionEvent(ctx, event, "")
	case "customer.subscription.deleted":
		err = h.applySubscriptionEvent(ctx, event, models.SubscriptionCanceled)
	case "invoice.payment_succeeded":
		err = h.applyInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = h.applyInvoiceFailed(ctx, event)
	default:
		h.Log.Debug("webhook: unhandled event type", zap.String("type", string(event.Type)))
	}

	if err != nil {
		switch {
		case errors.Is(err, companystore.ErrStaleEvent):
			h.Log.Info("webhook: stale event skipped",
				zap.String("type", string(event.Type)),
				zap.String("event_id", event.ID))
		case errors.Is(err, mongo.ErrNoDocuments):
			h.Log.Warn("webhook: no company for subscription",
				zap.String("type", string(event.Type)),
				zap.String("event_id", event.ID))
		default:
			h.Log.Error("webhook: apply failed",
				zap.String("type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
			http.Error(w, "apply failed", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// applySubscriptionEvent folds a subscription lifecycle event into the
// company. statusOverride forces the stored status for deletion events,
// where the provider payload may still carry the pre-deletion status.
func (h *Handler) applySubscriptionEvent(ctx context.Context, event stripe.Event, statusOverride models.SubscriptionStatus) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}

	co, err := h.Companies.GetBySubscriptionID(ctx, sub.ID)
	if err != nil {
		return err
	}

	status := models.SubscriptionStatus(sub.Status)
	if statusOverride != "" {
		status = statusOverride
	}

	return h.Companies.ApplySubscriptionEvent(ctx, co.ID,
		status,
		time.Unix(sub.CurrentPeriodEnd, 0),
		time.Unix(event.Created, 0))
}

// applyInvoicePaid refetches the subscription after a successful charge
// rather than trusting the invoice snapshot, which may already be
// behind the provider's state.
func (h *Handler) applyInvoicePaid(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return err
	}
	if inv.Subscription == nil {
		h.Log.Debug("webhook: invoice without subscription", zap.String("event_id", event.ID))
		return nil
	}

	co, err := h.Companies.GetBySubscriptionID(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}

	sub, err := h.Billing.GetSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}

	return h.Companies.ApplySubscriptionEvent(ctx, co.ID,
		models.SubscriptionStatus(sub.Status),
		time.Unix(sub.CurrentPeriodEnd, 0),
		time.Unix(event.Created, 0))
}

func (h *Handler) applyInvoiceFailed(ctx context.Context, event stripe.Event) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return err
	}
	if inv.Subscription == nil {
		return nil
	}

	co, err := h.Companies.GetBySubscriptionID(ctx, inv.Subscription.ID)
	if err != nil {
		return err
	}

	return h.Companies.ApplySubscriptionEvent(ctx, co.ID,
		models.SubscriptionPastDue,
		co.CurrentPeriodEnd,
		time.Unix(event.Created, 0))
}
