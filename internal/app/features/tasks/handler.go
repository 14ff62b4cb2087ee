// Package tasks exposes task CRUD plus the due-soon, overdue and
// workload views built on top of the task store.
package tasks

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

// DueSoonWindow is how far ahead the due-soon view looks.
const DueSoonWindow = 7 * 24 * time.Hour

var sanitizer = bluemonday.StrictPolicy()

type Handler struct {
	Tasks    *taskstore.Store
	Projects *projectstore.Store
	Users    *userstore.Store
	Log      *zap.Logger
}

// taskResponse decorates a stored task with schedule-derived values.
type taskResponse struct {
	models.Task
	DaysRemaining int  `json:"daysRemaining"`
	IsOverdue     bool `json:"isOverdue"`
}

func toResponse(t models.Task) taskResponse {
	now := time.Now()
	return taskResponse{
		Task:          t,
		DaysRemaining: t.DaysRemaining(now),
		IsOverdue:     t.IsOverdue(now),
	}
}

func toResponses(list []models.Task) []taskResponse {
	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t))
	}
	return out
}

/*──────────────────────────────────────────────────────────────────────────
  Create
──────────────────────────────────────────────────────────────────────────*/

// maxTitleLen caps the task title length.
const maxTitleLen = 100

type createRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Project     string    `json:"project"`
	AssignedTo  string    `json:"assignedTo"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Remarks     string    `json:"remarks"`
	DueDate     time.Time `json:"dueDate"`
}

func (req *createRequest) validate() []httpjson.FieldError {
	var errs []httpjson.FieldError
	if req.Title == "" {
		errs = append(errs, httpjson.FieldError{Field: "title", Message: "Task title is required."})
	} else if len(req.Title) > maxTitleLen {
		errs = append(errs, httpjson.FieldError{Field: "title", Message: "Task title must be 100 characters or fewer."})
	}
	if req.Project == "" {
		errs = append(errs, httpjson.FieldError{Field: "project", Message: "A project is required."})
	}
	if req.AssignedTo == "" {
		errs = append(errs, httpjson.FieldError{Field: "assignedTo", Message: "An assignee is required."})
	}
	if req.DueDate.IsZero() {
		errs = append(errs, httpjson.FieldError{Field: "dueDate", Message: "A due date is required."})
	}
	if req.Priority != "" && !models.IsValidTaskPriority(req.Priority) {
		errs = append(errs, httpjson.FieldError{Field: "priority", Message: "Unknown task priority."})
	}
	if req.Status != "" && !models.IsValidTaskStatus(req.Status) {
		errs = append(errs, httpjson.FieldError{Field: "status", Message: "Unknown task status."})
	}
	return errs
}

// HandleCreate handles POST /api/tasks.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	var req createRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		httpjson.FieldErrors(w, http.StatusBadRequest, errs)
		return
	}

	projectID, err := primitive.ObjectIDFromHex(req.Project)
	if err != nil {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "project", Message: "Invalid project id."},
		})
		return
	}
	assigneeID, err := primitive.ObjectIDFromHex(req.AssignedTo)
	if err != nil {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "assignedTo", Message: "Invalid assignee id."},
		})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task create")
	defer cancel()

	if _, err := h.Projects.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "project", Message: "No such project."},
			})
			return
		}
		httpjson.ServerError(w, h.Log, "task create: project lookup failed", err)
		return
	}
	if _, err := h.Users.GetByID(ctx, assigneeID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "assignedTo", Message: "No such account."},
			})
			return
		}
		httpjson.ServerError(w, h.Log, "task create: assignee lookup failed", err)
		return
	}

	created, err := h.Tasks.Create(ctx, models.Task{
		Title:       req.Title,
		Description: sanitizer.Sanitize(req.Description),
		Project:     projectID,
		AssignedTo:  assigneeID,
		CreatedBy:   user.ID,
		Priority:    models.TaskPriority(req.Priority),
		Status:      models.TaskStatus(req.Status),
		Remarks:     sanitizer.Sanitize(req.Remarks),
		DueDate:     req.DueDate,
	})
	if err != nil {
		httpjson.ServerError(w, h.Log, "task create failed", err)
		return
	}

	h.Log.Info("task created",
		zap.String("task_id", created.ID.Hex()),
		zap.String("project_id", projectID.Hex()))
	httpjson.Write(w, http.StatusCreated, map[string]any{
		"success": true,
		"task":    toResponse(created),
	})
}

/*──────────────────────────────────────────────────────────────────────────
  Views
──────────────────────────────────────────────────────────────────────────*/

// HandleListByProject handles GET /api/tasks/project/{projectID}.
// Supports status, priority and assignee query filters plus page/limit
// paging.
func (h *Handler) HandleListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "projectID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid project id.")
		return
	}

	page := paging.Parse(r)

	var filter taskstore.ProjectFilter
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.IsValidTaskStatus(status) {
			httpjson.Error(w, http.StatusBadRequest, "Unknown task status.")
			return
		}
		filter.Status = models.TaskStatus(status)
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		if !models.IsValidTaskPriority(priority) {
			httpjson.Error(w, http.StatusBadRequest, "Unknown task priority.")
			return
		}
		filter.Priority = models.TaskPriority(priority)
	}
	if assignee := r.URL.Query().Get("assignee"); assignee != "" {
		id, err := primitive.ObjectIDFromHex(assignee)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid assignee id.")
			return
		}
		filter.Assignee = id
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task list by project")
	defer cancel()

	list, total, err := h.Tasks.ListByProject(ctx, projectID, filter, page.Skip(), page.Limit())
	if err != nil {
		httpjson.ServerError(w, h.Log, "task list by project failed", err)
		return
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"tasks":   toResponses(list),
		"meta":    paging.MetaFor(page, total),
	})
}

// HandleListMine handles GET /api/tasks/mine.
func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := sysauth.CurrentUser(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task list mine")
	defer cancel()

	list, err := h.Tasks.ListByAssignee(ctx, user.ID)
	if err != nil {
		httpjson.ServerError(w, h.Log, "task list mine failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "tasks": toResponses(list)})
}

// HandleListByAssignee handles GET /api/tasks/assignee/{assigneeID}.
// The response carries the assignee's tasks plus workload counts.
func (h *Handler) HandleListByAssignee(w http.ResponseWriter, r *http.Request) {
	assigneeID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "assigneeID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid assignee id.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task list by assignee")
	defer cancel()

	list, err := h.Tasks.ListByAssignee(ctx, assigneeID)
	if err != nil {
		httpjson.ServerError(w, h.Log, "task list by assignee failed", err)
		return
	}

	var completed int
	for _, t := range list {
		if t.Status == models.TaskCompleted {
			completed++
		}
	}

	httpjson.OK(w, map[string]any{
		"success": true,
		"tasks":   toResponses(list),
		"stats": map[string]int{
			"total":     len(list),
			"completed": completed,
			"pending":   len(list) - completed,
		},
	})
}

// HandleDueSoon handles GET /api/tasks/due-soon.
func (h *Handler) HandleDueSoon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task due soon")
	defer cancel()

	list, err := h.Tasks.ListDueSoon(ctx, time.Now(), DueSoonWindow)
	if err != nil {
		httpjson.ServerError(w, h.Log, "task due soon failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "tasks": toResponses(list)})
}

// HandleOverdue handles GET /api/tasks/overdue.
func (h *Handler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task overdue")
	defer cancel()

	list, err := h.Tasks.ListOverdue(ctx, time.Now())
	if err != nil {
		httpjson.ServerError(w, h.Log, "task overdue failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "tasks": toResponses(list)})
}

// HandleAssigneeStats handles GET /api/tasks/project/{projectID}/stats.
func (h *Handler) HandleAssigneeStats(w http.ResponseWriter, r *http.Request) {
	projectID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "projectID"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid project id.")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task assignee stats")
	defer cancel()

	stats, err := h.Tasks.AssigneeStats(ctx, projectID, time.Now())
	if err != nil {
		httpjson.ServerError(w, h.Log, "task assignee stats failed", err)
		return
	}
	if stats == nil {
		stats = []taskstore.AssigneeStat{}
	}

	httpjson.OK(w, map[string]any{"success": true, "stats": stats})
}

// HandleGet handles GET /api/tasks/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "task get")
	defer cancel()

	t, err := h.Tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Task not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "task get failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "task": toResponse(*t)})
}

/*──────────────────────────────────────────────────────────────────────────
  Update / delete
──────────────────────────────────────────────────────────────────────────*/

type updateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	AssignedTo  *string    `json:"assignedTo"`
	Priority    *string    `json:"priority"`
	Status      *string    `json:"status"`
	Remarks     *string    `json:"remarks"`
	DueDate     *time.Time `json:"dueDate"`
}

// HandleUpdate handles PUT /api/tasks/{id}.
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
	if req.Title != nil && len(*req.Title) > maxTitleLen {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "title", Message: "Task title must be 100 characters or fewer."},
		})
		return
	}
	if req.Priority != nil && !models.IsValidTaskPriority(*req.Priority) {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "priority", Message: "Unknown task priority."},
		})
		return
	}
	if req.Status != nil && !models.IsValidTaskStatus(*req.Status) {
		httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
			{Field: "status", Message: "Unknown task status."},
		})
		return
	}

	upd := taskstore.Update{
		Title:   req.Title,
		DueDate: req.DueDate,
	}
	if req.Description != nil {
		clean := sanitizer.Sanitize(*req.Description)
		upd.Description = &clean
	}
	if req.Remarks != nil {
		clean := sanitizer.Sanitize(*req.Remarks)
		upd.Remarks = &clean
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		upd.Priority = &priority
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		upd.Status = &status
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "task update")
	defer cancel()

	if req.AssignedTo != nil {
		assigneeID, err := primitive.ObjectIDFromHex(*req.AssignedTo)
		if err != nil {
			httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
				{Field: "assignedTo", Message: "Invalid assignee id."},
			})
			return
		}
		if _, err := h.Users.GetByID(ctx, assigneeID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				httpjson.FieldErrors(w, http.StatusBadRequest, []httpjson.FieldError{
					{Field: "assignedTo", Message: "No such account."},
				})
				return
			}
			httpjson.ServerError(w, h.Log, "task update: assignee lookup failed", err)
			return
		}
		upd.AssignedTo = &assigneeID
	}

	t, err := h.Tasks.UpdateByID(ctx, id, upd)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Task not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "task update failed", err)
		return
	}

	httpjson.OK(w, map[string]any{"success": true, "task": toResponse(*t)})
}

// HandleDelete handles DELETE /api/tasks/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "task delete")
	defer cancel()

	if err := h.Tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.Error(w, http.StatusNotFound, "Task not found.")
			return
		}
		httpjson.ServerError(w, h.Log, "task delete failed", err)
		return
	}

	httpjson.Message(w, http.StatusOK, "Task deleted.")
}

func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid task id.")
		return primitive.ObjectID{}, false
	}
	return id, true
}
