// internal/app/features/auth/routes.go
package auth

import "github.com/go-chi/chi/v5"

// Routes returns the /api/auth subrouter.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleLogin)
	r.Post("/signup/initiate", h.HandleSignupInitiate)
	r.Post("/signup/verify", h.HandleSignupVerify)
	r.Post("/signup/resend", h.HandleSignupResend)
	return r
}
