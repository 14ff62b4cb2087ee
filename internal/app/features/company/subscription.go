// internal/app/features/company/subscription.go
package company

import (
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// HandleSubscription handles GET /api/companies/me/subscription. It
// reports the provider's current view alongside what we have stored,
// so support can spot drift at a glance.
func (h *Handler) HandleSubscription(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "subscription details")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "subscription: company lookup failed", err)
		return
	}

	sub, err := h.Billing.GetSubscription(ctx, co.StripeSubscriptionID)
	if err != nil {
		httpjson.ServerError(w, h.Log, "subscription: provider fetch failed", err)
		return
	}

	// The card summary is best effort: a missing or detached payment
	// method should not hide the subscription state.
	var card map[string]any
	if co.PaymentMethodID != "" {
		c, err := h.Billing.GetCard(ctx, co.PaymentMethodID)
		if err != nil {
			h.Log.Warn("subscription: card lookup failed",
				zap.String("company_id", co.ID.Hex()),
				zap.Error(err))
		} else {
			card = map[string]any{
				"brand":    c.Brand,
				"last4":    c.Last4,
				"expMonth": c.ExpMonth,
				"expYear":  c.ExpYear,
			}
		}
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"subscription": map[string]any{
			"planId":           co.PlanID,
			"status":           sub.Status,
			"currentPeriodEnd": time.Unix(sub.CurrentPeriodEnd, 0),
			"limits":           co.Limits,
			"card":             card,
		},
	})
}

type changePlanRequest struct {
	PlanID string `json:"planId"`
}

// HandleChangePlan handles PUT /api/companies/me/subscription/plan.
func (h *Handler) HandleChangePlan(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	var req changePlanRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if !models.IsValidPlan(req.PlanID) {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "planId", Message: "Unknown plan."},
		})
		return
	}
	plan := models.PlanID(req.PlanID)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "subscription plan change")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "subscription: company lookup failed", err)
		return
	}
	if co.PlanID == plan {
		httpjson.Error(w, http.StatusBadRequest, "The company is already on this plan.")
		return
	}

	sub, err := h.Billing.ChangeSubscriptionPlan(ctx, co.StripeSubscriptionID, plan)
	if err != nil {
		httpjson.ServerError(w, h.Log, "subscription: provider change failed", err)
		return
	}

	updated, err := h.Companies.ChangePlan(ctx, co.ID, plan,
		models.SubscriptionStatus(sub.Status), time.Unix(sub.CurrentPeriodEnd, 0))
	if err != nil {
		httpjson.ServerError(w, h.Log, "subscription: persist failed", err)
		return
	}

	h.Log.Info("subscription plan changed",
		zap.String("company_id", co.ID.Hex()),
		zap.String("from", string(co.PlanID)),
		zap.String("to", string(plan)))

	httpjson.OK(w, map[string]any{"success": true, "company": updated})
}

// HandleCancel handles DELETE /api/companies/me/subscription. The
// subscription ends immediately; the company record stays for audit
// and possible reactivation.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "subscription cancel")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "subscription: company lookup failed", err)
		return
	}

	sub, err := h.Billing.CancelSubscription(ctx, co.StripeSubscriptionID)
	if err != nil {
		httpjson.ServerError(w, h.Log, "subscription: provider cancel failed", err)
		return
	}

	err = h.Companies.ApplySubscriptionEvent(ctx, co.ID,
		models.SubscriptionStatus(sub.Status), time.Unix(sub.CurrentPeriodEnd, 0), time.Now())
	if err != nil {
		httpjson.ServerError(w, h.Log, "subscription: persist failed", err)
		return
	}

	h.Log.Info("subscription canceled", zap.String("company_id", co.ID.Hex()))
	httpjson.Message(w, http.StatusOK, "Subscription canceled.")
}

type paymentMethodRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// HandleUpdatePaymentMethod handles PUT /api/companies/me/payment-method.
func (h *Handler) HandleUpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	var req paymentMethodRequest
	if err := httpjson.Decode(r, &req); err != nil || req.PaymentMethodID == "" {
		httpjson.Error(w, http.StatusBadRequest, "paymentMethodId is required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "payment method update")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "payment method: company lookup failed", err)
		return
	}

	if err := h.Billing.AttachPaymentMethod(ctx, co.StripeCustomerID, req.PaymentMethodID); err != nil {
		httpjson.ServerError(w, h.Log, "payment method: attach failed", err)
		return
	}
	if err := h.Billing.SetDefaultPaymentMethod(ctx, co.StripeCustomerID, req.PaymentMethodID); err != nil {
		httpjson.ServerError(w, h.Log, "payment method: default failed", err)
		return
	}
	if err := h.Companies.SetPaymentMethod(ctx, co.ID, req.PaymentMethodID); err != nil {
		httpjson.ServerError(w, h.Log, "payment method: persist failed", err)
		return
	}

	httpjson.Message(w, http.StatusOK, "Payment method updated.")
}
