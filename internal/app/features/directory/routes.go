// internal/app/features/directory/routes.go
package directory

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/domain/models"
)

// Routes returns the /api/directory subrouter. Each role segment is
// gated to the roles allowed to manage it: platform admins manage
// company admins, company admins manage managers, and managers manage
// both project managers and developers.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/companyadmins", func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin))
		mountRole(r, h, models.RoleCompanyAdmin)
	})

	r.Route("/managers", func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin, models.RoleCompanyAdmin))
		mountRole(r, h, models.RoleManager)
	})

	r.Route("/project-managers", func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin, models.RoleCompanyAdmin, models.RoleManager))
		mountRole(r, h, models.RoleProjectManager)
	})

	r.Route("/developers", func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin, models.RoleCompanyAdmin, models.RoleManager))
		mountRole(r, h, models.RoleDeveloper)
	})

	return r
}

func mountRole(r chi.Router, h *Handler, role models.Role) {
	r.Get("/", h.handleList(role))
	r.Post("/", h.handleCreate(role))
	r.Get("/{id}", h.handleGet(role))
	r.Put("/{id}", h.handleUpdate(role))
	r.Delete("/{id}", h.handleDelete(role))
	r.Patch("/{id}/toggle", h.handleToggle(role))
}
