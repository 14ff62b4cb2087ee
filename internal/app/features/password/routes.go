// internal/app/features/password/routes.go
package password

import "github.com/go-chi/chi/v5"

// Routes returns the /api/password subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/forgot", h.HandleForgot)
	r.Post("/validate", h.HandleValidate)
	r.Post("/reset", h.HandleReset)
	return r
}
