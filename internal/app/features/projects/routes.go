package projects

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/domain/models"
)

/*──────────────────────────────────────────────────────────────────────────
  Routes

  Mounted under /api/projects. Reading is open to any signed-in user;
  writing needs a project-management role, and verification stays with
  the company admin.
──────────────────────────────────────────────────────────────────────────*/

func Routes(h *Handler) chi.Router {
	manage := []models.Role{
		models.RoleAdmin,
		models.RoleCompanyAdmin,
		models.RoleManager,
		models.RoleProjectManager,
	}

	r := chi.NewRouter()
	r.Use(sysauth.RequireSignedIn)

	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Post("/{id}/comments", h.HandleAddComment)

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(manage...))
		r.Post("/", h.HandleCreate)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(models.RoleAdmin, models.RoleCompanyAdmin))
		r.Patch("/{id}/verify", h.HandleVerify)
	})

	return r
}
