package profile

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(sysauth.RequireSignedIn)
	r.Get("/", h.HandleGet)
	r.Put("/", h.HandleUpdate)
	return r
}
