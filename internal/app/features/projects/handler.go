// Package projects exposes project CRUD, comments and verification.
package projects

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	projectstore "github.com/carverdev/projhub/internal/app/store/projects"
	taskstore "github.com/carverdev/projhub/internal/app/store/tasks"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	sysauth "github.com/carverdev/projhub/internal/app/system/auth"
	"github.com/carverdev/projhub/internal/app/system/httpjson"
	"github.com/carverdev/projhub/internal/app/system/paging"
	"github.com/carverdev/projhub/internal/app/system/timeouts"
	"github.com/carverdev/projhub/internal/domain/models"
)

// sanitizer strips markup from free-text fields before storage. Plain
// text only; rendering clients decide their own formatting.
var sanitizer = bluemonday.StrictPolicy()

type Handler struct {
	Projects *projectstore.Store
	Tasks    *taskstore.Store
	Users    *userstore.Store
	Log      *zap.Logger
}

/*──────────────────────────────────────────────────────────────────────────
  Responses
──────────────────────────────────────────────────────────────────────────*/

// projectResponse decorates a stored project with values derived from
// its dates at response time.
type projectResponse struct {
	models.Project
	CompletionPercentage int `json:"completionPercentage"`
	DurationDays         int `json:"durationDays"`
}

func toResponse(p models.Project) projectResponse {
	return projectResponse{
		Project:              p,
		CompletionPercentage: p.CompletionPercentage(time.Now()),
		DurationDays:         p.DurationDays(),
	}
}

/*──────────────────────────────────────────────────────────────────────────
  Create
──────────────────────────────────────────────────────────────────────────*/

type createRequest struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ClientName     string    `json:"clientName"`
	Budget         float64   `json:"budget"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	ProjectManager string    `json:"projectManager"`
	Goal           string    `json:"goal"`
	Status         string    `json:"status"`
}

// maxNameLen caps the project name length.
const maxNameLen = 100

func (req *createRequest) validate() []httpjson.FieldError {
	var errs []httpjson.FieldError
	if req.Name == "" {
		errs = append(errs, httpjson.FieldError{Field: "name", Message: "Project name is required."})
	} else if len(req.Name) > maxNameLen {
		errs = append(errs, httpjson.FieldError{Field: "name", Message: "Project name must be 100 characters or fewer."})
	}
	if req.ClientName == "" {
		errs = append(errs, httpjson.FieldError{Field: "clientName", Message: "Client name is required."})
	}
	if req.Budget < 0 {
		errs = append(errs, httpjson.FieldError{Field: "budget", Message: "Budget must not be negative."})
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		errs = append(errs, httpjson.FieldError{Field: "dates", Message: "Start and end dates are required."})
	} else if req.StartDate.After(req.EndDate) {
		errs = append(errs, httpjson.FieldError{Field: "dates", Message: "Start date must not be after the end date."})
	}
	if req.ProjectManager == "" {
		errs = append(errs, httpjson.FieldError{Field: "projectManager", Message: "A project manager is required."})
	}
	if req.Status != "" && !models.IsValidProjectStatus(req.Status) {
		errs = append(errs, httpjson.FieldError{Field: "status", Message: "Unknown project status."})
	}
	return errs
}

// HandleCreate handles POST /api/projects.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpjson.FieldErrors(w, http.StatusBadRequest, errs)
		return
	}

	managerID, err := primitive.ObjectIDFromHex(req.ProjectManager)
	if err != nil {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "projectManager", Message: "Invalid project manager id."},
		})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "project create")
	defer cancel()

	// Whoever is assigned must hold a role that can run projects.
	manager, err := h.Users.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "projectManager", Message: "No such account."},
			})
			return
		}
		httpjson.ServerError(w, h.Log, "project create: manager lookup failed", err)
		return
	}
	if !manager.Role.CanManageProjects() {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "projectManager", Message: "That account cannot manage projects."},
		})
		return
	}

	created, err := h.Projects.Create(ctx, models.Project{
		Name:           req.Name,
		Description:    sanitizer.Sanitize(req.Description),
		ClientName:     req.ClientName,
		Budget:         req.Budget,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		ProjectManager: managerID,
		Goal:           sanitizer.Sanitize(req.Goal),
		Status:         models.ProjectStatus(req.Status),
	})
	if err != nil {
		httpjson.ServerError(w, h.Log, "project create failed", err)
		return
	}

	h.Log.Info("project created",
		zap.String("project_id", created.ID.Hex()),
		zap.String("manager_id", managerID.Hex()))
	httpjson.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"project": toResponse(created),
	})
}

/*──────────────────────────────────────────────────────────────────────────
  Read
──────────────────────────────────────────────────────────────────────────*/

// HandleList handles GET /api/projects. Supports status, manager,
// clientName, and start-date range query filters plus page/limit
// paging.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := paging.Parse(r)

	var filter projectstore.Filter
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.IsValidProjectStatus(status) {
			httpjson.Error(w, http.StatusBadRequest, "Unknown project status.")
			return
		}
		filter.Status = models.ProjectStatus(status)
	}
	if manager := r.URL.Query().Get("manager"); manager != "" {
		id, err := primitive.ObjectIDFromHex(manager)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid manager id.")
			return
		}
		filter.Manager = id
	}
	filter.ClientName = r.URL.Query().Get("clientName")
	if from := r.URL.Query().Get("startFrom"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid startFrom date.")
			return
		}
		filter.StartFrom = ts
	}
	if to := r.URL.Query().Get("startTo"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid startTo date.")
			return
		}
		filter.StartTo = ts
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "project list")
	defer cancel()

	list, total, err := h.Projects.List(ctx, filter, page.Skip(), page.Limit())
	if err != nil {
		httpjson.ServerError(w, h.Log, "project list failed", err)
		return
	}

	out := make([]projectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toResponse(p))
	}

	httpjson.OK(w, map[string]any{
		"success":  true,
		"projects": out,
		"meta":     paging.MetaFor(page, total),
	})
}

// HandleGet handles GET /api/projects/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "project get")
	defer cancel()

	p, err := h.Projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Project not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "project get failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"project": toResponse(*p),
	})
}

/*──────────────────────────────────────────────────────────────────────────
  Update / delete
──────────────────────────────────────────────────────────────────────────*/

type updateRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ClientName  *string    `json:"clientName"`
	Budget      *float64   `json:"budget"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Goal        *string    `json:"goal"`
	Status      *string    `json:"status"`
}

// HandleUpdate handles PUT /api/projects/{id}. Date order is checked
// against the merged result so a single-sided edit cannot invert the
// stored range.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil && len(*req.Name) > maxNameLen {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "name", Message: "Project name must be 100 characters or fewer."},
		})
		return
	}
	if req.Budget != nil && *req.Budget < 0 {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "budget", Message: "Budget must not be negative."},
		})
		return
	}
	if req.Status != nil && !models.IsValidProjectStatus(*req.Status) {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "status", Message: "Unknown project status."},
		})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "project update")
	defer cancel()

	if req.StartDate != nil || req.EndDate != nil {
		current, err := h.Projects.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.Error(w, http.StatusNotFound, "Project not found.")
				return
			}
			httpjson.ServerError(w, h.Log, "project update: lookup failed", err)
			return
		}
		start, end := current.StartDate, current.EndDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		if start.After(end) {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "dates", Message: "Start date must not be after the end date."},
			})
			return
		}
	}

	upd := projectstore.Update{
		Name:       req.Name,
		ClientName: req.ClientName,
		Budget:     req.Budget,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
	}
	if req.Description != nil {
		clean := sanitizer.Sanitize(*req.Description)
		upd.Description = &clean
	}
	if req.Goal != nil {
		clean := sanitizer.Sanitize(*req.Goal)
		upd.Goal = &clean
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		upd.Status = &status
	}

	p, err := h.Projects.UpdateByID(ctx, id, upd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Project not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "project update failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"project": toResponse(*p),
	})
}

// HandleDelete handles DELETE /api/projects/{id}. Tasks belonging to
// the project go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "project delete")
	defer cancel()

	if err := h.Projects.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Project not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "project delete failed", err)
		return
	}

	removed, err := h.Tasks.DeleteByProject(ctx, id)
	if err != nil {
		// The project is gone; orphaned tasks are a cleanup problem,
		// not a reason to fail the request.
		h.Log.Error("project delete: task cascade failed",
			zap.String("project_id", id.Hex()), zap.Error(err))
	} else if removed > 0 {
		h.Log.Info("project delete: removed tasks",
			zap.String("project_id", id.Hex()), zap.Int64("tasks", removed))
	}

	httpjson.Message(w, http.StatusOK, "Project deleted.")
}

/*──────────────────────────────────────────────────────────────────────────
  Comments and verification
──────────────────────────────────────────────────────────────────────────*/

type commentRequest struct {
	Text string `json:"text"`
}

// HandleAddComment handles POST /api/projects/{id}/comments.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	text := sanitizer.Sanitize(req.Text)
	if text == "" {
		httpjson.Error(w, http.StatusBadRequest, "Comment text is required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "project comment")
	defer cancel()

	p, err := h.Projects.AddComment(ctx, id, user.ID, text)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Project not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "project comment failed", err)
		return
	}

	httpjson.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"project": toResponse(*p),
	})
}

type verifyRequest struct {
	Verified bool `json:"verified"`
}

// HandleVerify handles PATCH /api/projects/{id}/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "project verify")
	defer cancel()

	p, err := h.Projects.SetVerification(ctx, id, req.Verified)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Project not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "project verify failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"project": toResponse(*p),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid project id.")
		return primitive.ObjectID{}, false
	}
	return id, true
}
