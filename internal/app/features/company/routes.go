// internal/app/features/company/routes.go
package company

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/domain/models"
)

// Routes returns the /api/companies subrouter. Onboarding endpoints
// accept any signed-in user (the promotion to companyAdmin happens on
// completion); management endpoints require ownership or platform
// admin rights.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireSignedIn, h.requireBilling)
		r.Post("/payment-intent", h.HandlePaymentIntent)
		r.Post("/complete", h.HandleComplete)
	})

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleCompanyAdmin))
		r.Get("/me", h.HandleGetMine)
		r.Put("/me", h.HandleUpdateMine)

		r.Group(func(r chi.Router) {
			r.Use(h.requireBilling)
			r.Get("/me/subscription", h.HandleSubscription)
			r.Put("/me/subscription/plan", h.HandleChangePlan)
			r.Delete("/me/subscription", h.HandleCancel)
			r.Put("/me/payment-method", h.HandleUpdatePaymentMethod)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin))
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin, models.RoleCompanyAdmin))
		r.Patch("/{id}/verify", h.HandleVerify)
	})

	return r
}
