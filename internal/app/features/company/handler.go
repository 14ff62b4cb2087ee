// Package company implements onboarding and ongoing management of the
// paying tenant: the payment-intent handshake, subscription lifecycle
// and company profile CRUD.
package company

import (
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	companystore "github.com/carverdev/projhub/internal/app/store/companies"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/billing"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

type Handler struct {
	Companies *companystore.Store
	Users     *userstore.Store
	Billing   billing.Gateway
	Log       *zap.Logger
}

// requireBilling rejects payment-backed endpoints when no provider is
// configured, so the service can still run without Stripe credentials.
func (h *Handler) requireBilling(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Billing == nil {
			httpjson.Error(w, http.StatusServiceUnavailable, "Billing is not configured.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type intentRequest struct {
	PlanID string `json:"planId"`
}

// HandlePaymentIntent handles POST /api/companies/payment-intent.
//
// It binds (or creates) the provider customer for the signed-in user
// and opens a card payment sized to the chosen plan. The returned
// client secret drives the card form on the frontend.
func (h *Handler) HandlePaymentIntent(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	var req intentRequest
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

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create payment intent")
	defer cancel()

	// A user restarting onboarding keeps their provider customer; a
	// customer deleted on the provider side gets recreated.
	customerID, err := h.Billing.EnsureCustomer(ctx, u.StripeCustomerID, u.Name, u.Email)
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: customer ensure failed", err)
		return
	}
	if customerID != u.StripeCustomerID {
		if err := h.Users.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
			httpjson.ServerError(w, h.Log, "company: customer persist failed", err)
			return
		}
	}

	intent, err := h.Billing.CreatePaymentIntent(ctx, customerID, plan)
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: payment intent failed", err)
		return
	}

	h.Log.Info("payment intent created",
		zap.String("user_id", u.ID.Hex()),
		zap.String("plan", string(plan)))

	httpjson.OK(w, map[string]any{
		"success":         true,
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
		"amount":          billing.PlanAmountCents(plan),
	})
}

type addressPayload struct {
	BuildingNo string `json:"buildingNo"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

type completeRequest struct {
	PaymentIntentID string         `json:"paymentIntentId"`
	PlanID          string         `json:"planId"`
	CompanyName     string         `json:"companyName"`
	CompanyType     string         `json:"companyType"`
	CompanyDomain   string         `json:"companyDomain"`
	PhoneNumber     string         `json:"phoneNumber"`
	Address         addressPayload `json:"address"`
}

func (req *completeRequest) validate() []httpjson.FieldError {
	var errs []httpjson.FieldError
	if req.PaymentIntentID == "" {
		errs = append(errs, httpjson.FieldError{Field: "paymentIntentId", Message: "Payment intent is required."})
	}
	if !models.IsValidPlan(req.PlanID) {
		errs = append(errs, httpjson.FieldError{Field: "planId", Message: "Unknown plan."})
	}
	if normalize.Name(req.CompanyName) == "" {
		errs = append(errs, httpjson.FieldError{Field: "companyName", Message: "Company name is required."})
	}
	if req.CompanyType == "" {
		errs = append(errs, httpjson.FieldError{Field: "companyType", Message: "Company type is required."})
	}
	if req.CompanyDomain == "" {
		errs = append(errs, httpjson.FieldError{Field: "companyDomain", Message: "Company domain is required."})
	}
	if normalize.Phone(req.PhoneNumber) == "" {
		errs = append(errs, httpjson.FieldError{Field: "phoneNumber", Message: "Phone number is required."})
	}
	for field, value := range map[string]string{
		"address.buildingNo": req.Address.BuildingNo,
		"address.street":     req.Address.Street,
		"address.city":       req.Address.City,
		"address.state":      req.Address.State,
		"address.country":    req.Address.Country,
		"address.postalCode": req.Address.PostalCode,
	} {
		if value == "" {
			errs = append(errs, httpjson.FieldError{Field: field, Message: "Address is incomplete."})
		}
	}
	return errs
}

// HandleComplete handles POST /api/companies/complete.
//
// Called after the frontend confirms the card payment. The sequence is
// deliberate: bind the card to the customer, make it the default, then
// open the subscription, and only persist the company once the
// provider side is fully set up. On success the owner is promoted to
// companyAdmin.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	var req completeRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpjson.FieldErrors(w, http.StatusBadRequest, errs)
		return
	}
	plan := models.PlanID(req.PlanID)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "complete company creation")
	defer cancel()

	if _, err := h.Companies.GetByAdmin(ctx, u.ID); err == nil {
		httpjson.Error(w, http.StatusConflict, "This account already owns a company.")
		return
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		httpjson.ServerError(w, h.Log, "company: ownership check failed", err)
		return
	}

	intent, err := h.Billing.RetrieveIntent(ctx, req.PaymentIntentID)
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: intent retrieve failed", err)
		return
	}
	if intent.Status != "succeeded" {
		httpjson.Error(w, http.StatusBadRequest, "Payment has not completed.")
		return
	}
	if intent.PaymentMethodID == "" {
		httpjson.Error(w, http.StatusBadRequest, "Payment has no card on file.")
		return
	}

	if err := h.Billing.AttachPaymentMethod(ctx, intent.CustomerID, intent.PaymentMethodID); err != nil {
		httpjson.ServerError(w, h.Log, "company: card attach failed", err)
		return
	}
	if err := h.Billing.SetDefaultPaymentMethod(ctx, intent.CustomerID, intent.PaymentMethodID); err != nil {
		httpjson.ServerError(w, h.Log, "company: default card failed", err)
		return
	}

	sub, err := h.Billing.CreateSubscription(ctx, intent.CustomerID, plan)
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: subscription create failed", err)
		return
	}

	co, err := h.Companies.Create(ctx, models.Company{
		CompanyName:   req.CompanyName,
		CompanyType:   req.CompanyType,
		CompanyDomain: req.CompanyDomain,
		PhoneNumber:   normalize.Phone(req.PhoneNumber),
		Address: models.Address{
			BuildingNo: req.Address.BuildingNo,
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			Country:    req.Address.Country,
			PostalCode: req.Address.PostalCode,
		},
		CompanyAdmin:         u.ID,
		PlanID:               plan,
		StripeCustomerID:     intent.CustomerID,
		StripeSubscriptionID: sub.ID,
		PaymentMethodID:      intent.PaymentMethodID,
		SubscriptionStatus:   models.SubscriptionStatus(sub.Status),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
	})
	if err != nil {
		if errors.Is(err, companystore.ErrAlreadyOwner) {
			httpjson.Error(w, http.StatusConflict, "This account already owns a company.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: persist failed", err)
		return
	}

	if u.Role != models.RoleCompanyAdmin {
		if err := h.Users.SetRole(ctx, u.ID, models.RoleCompanyAdmin); err != nil {
			httpjson.ServerError(w, h.Log, "company: role promotion failed", err)
			return
		}
	}

	h.Log.Info("company onboarded",
		zap.String("company_id", co.ID.Hex()),
		zap.String("admin_id", u.ID.Hex()),
		zap.String("plan", string(plan)))

	httpjson.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"company": co,
	})
}

// HandleGetMine handles GET /api/companies/me.
func (h *Handler) HandleGetMine(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "company get mine")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: lookup failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "company": co})
}

type detailsRequest struct {
	CompanyName   *string         `json:"companyName"`
	CompanyType   *string         `json:"companyType"`
	CompanyDomain *string         `json:"companyDomain"`
	PhoneNumber   *string         `json:"phoneNumber"`
	Address       *addressPayload `json:"address"`
}

// HandleUpdateMine handles PUT /api/companies/me.
func (h *Handler) HandleUpdateMine(w http.ResponseWriter, r *http.Request) {
	u, _ := sysauth.CurrentUser(r)

	var req detailsRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "company update")
	defer cancel()

	co, err := h.Companies.GetByAdmin(ctx, u.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "No company for this account.")
			return
		}
		httpjson.ServerError(w, h.Log, "company: lookup failed", err)
		return
	}

	upd := companystore.DetailsUpdate{
		CompanyName:   req.CompanyName,
		CompanyType:   req.CompanyType,
		CompanyDomain: req.CompanyDomain,
		PhoneNumber:   req.PhoneNumber,
	}
	if req.Address != nil {
		upd.Address = &models.Address{
			BuildingNo: req.Address.BuildingNo,
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			Country:    req.Address.Country,
			PostalCode: req.Address.PostalCode,
		}
	}

	updated, err := h.Companies.UpdateDetails(ctx, co.ID, upd)
	if err != nil {
		httpjson.ServerError(w, h.Log, "company: update failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "company": updated})
}
