// internal/app/features/company/admin.go
package company

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/paging"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
)

// HandleList handles GET /api/companies. Platform admins only.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "company list")
	defer cancel()

	companies, total, err := h.Companies.List(ctx, page.Skip(), page.Limit())
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: list failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success":   true,
		"companies": companies,
		"meta":      paging.MetaFor(page, total),
	})
}

// HandleGet handles GET /api/companies/{id}. Platform admins only.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid company id.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "company get")
	defer cancel()

	co, err := h.Companies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Company not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: get failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "company": co})
}

// HandleDelete handles DELETE /api/companies/{id}. Platform admins
// only. The provider subscription is canceled before the document is
// removed so a deleted tenant stops being billed.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid company id.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "company delete")
	defer cancel()

	co, err := h.Companies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Company not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: delete lookup failed", err)
		return
	}

	if co.StripeSubscriptionID != "" && h.Billing != nil {
		if _, err := h.Billing.CancelSubscription(ctx, co.StripeSubscriptionID); err != nil {
			httpjson.ServerError(w, h.Log, "company: subscription cancel failed", err)
			return
		}
	}

	if err := h.Companies.Delete(ctx, id); err != nil {
		httpjson.ServerError(w, h.Log, "company: delete failed", err)
		return
	}

	h.Log.Info("company deleted", zap.String("company_id", id.Hex()))
	httpjson.Message(w, http.StatusOK, "Company deleted.")
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

// HandleVerify handles PATCH /api/companies/{id}/verify. Platform
// admins and company admins flip this after vetting a tenant.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid company id.")
		return
	}

	var req verifyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "company verify")
	defer cancel()

	co, err := h.Companies.SetVerification(ctx, id, req.Verified)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Company not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: verify failed", err)
		return
	}

	h.Log.Info("company verification changed",
		zap.String("company_id", id.Hex()),
		zap.Bool("verified", req.Verified))

	httpjson.OK(w, map[string]any{"success": true, "company": co})
}
