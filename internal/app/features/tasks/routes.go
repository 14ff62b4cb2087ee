package tasks

import (
	"github.com/go-chi/chi/v5"

	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/domain/models"
)

/*──────────────────────────────────────────────────────────────────────────
  Routes

  Mounted under /api/tasks. Everyone signed in can read and work their
  own tasks; creating, reassigning and deleting need a
  project-management role. Fixed segments come before {id} so the
  router never treats them as ids.
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

	r.Get("/mine", h.HandleListMine)
	r.Get("/due-soon", h.HandleDueSoon)
	r.Get("/overdue", h.HandleOverdue)
	r.Get("/assignee/{assigneeID}", h.HandleListByAssignee)
	r.Get("/project/{projectID}", h.HandleListByProject)
	r.Get("/project/{projectID}/stats", h.HandleAssigneeStats)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}", h.HandleUpdate)

	r.Group(func(r chi.Router) {
		r.Use(sysauth.RequireRole(manage...))
		r.Post("/", h.HandleCreate)
		r.Delete("/{id}", h.HandleDelete)
	})

	return r
}
