package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	projectstore "github.com/carverdev/projhub/internal/app/store/projects"
	taskstore "github.com/carverdev/projhub/internal/app/store/tasks"
	userstore "github.com/carverdev/projhub/internal/app/store/users"
	"github.com/carverdev/projhub/internal/domain/models"
	"github.com/carverdev/projhub/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := &Handler{
		Tasks:    taskstore.New(db),
		Projects: projectstore.New(db),
		Users:    userstore.New(db),
		Log:      zap.NewNop(),
	}
	return h, testutil.NewFixtures(t, db)
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreatePersistsRemarks(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	manager := fx.CreateUser(ctx, "Pat Jones", "pat@example.com", models.RoleProjectManager)
	dev := fx.CreateUser(ctx, "Dev One", "dev@example.com", models.RoleDeveloper)
	p := fx.CreateProject(ctx, "Website Revamp", manager.ID, time.Now(), 30)

	body := `{
		"title": "Wire the login form",
		"project": "` + p.ID.Hex() + `",
		"assignedTo": "` + dev.ID.Hex() + `",
		"priority": "urgent",
		"remarks": "Blocked on the design handoff.",
		"dueDate": "2026-09-15T00:00:00Z"
	}`
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(postJSON("/", body), &manager))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp struct {
		Task struct {
			Remarks  string `json:"remarks"`
			Priority string `json:"priority"`
		} `json:"task"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Task.Remarks != "Blocked on the design handoff." {
		t.Errorf("remarks = %q", resp.Task.Remarks)
	}
	if resp.Task.Priority != "urgent" {
		t.Errorf("priority = %q, want urgent", resp.Task.Priority)
	}
}

func TestCreateRejectsUnknownEnumValues(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	manager := fx.CreateUser(ctx, "Pat Jones", "pat@example.com", models.RoleProjectManager)
	dev := fx.CreateUser(ctx, "Dev One", "dev@example.com", models.RoleDeveloper)
	p := fx.CreateProject(ctx, "Website Revamp", manager.ID, time.Now(), 30)

	for _, tc := range []struct {
		name  string
		body  string
		field string
	}{
		{"bad priority", `"priority": "critical"`, "priority"},
		{"bad status", `"status": "todo"`, "status"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := `{
				"title": "Wire the login form",
				"project": "` + p.ID.Hex() + `",
				"assignedTo": "` + dev.ID.Hex() + `",
				"dueDate": "2026-09-15T00:00:00Z",
				` + tc.body + `
			}`
			rec := httptest.NewRecorder()
			h.HandleCreate(rec, testutil.WithUser(postJSON("/", body), &manager))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), `"`+tc.field+`"`) {
				t.Errorf("body = %s, want a %s field error", rec.Body.String(), tc.field)
			}
		})
	}
}

func TestCreateRejectsOverlongTitle(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	manager := fx.CreateUser(ctx, "Pat Jones", "pat@example.com", models.RoleProjectManager)
	dev := fx.CreateUser(ctx, "Dev One", "dev@example.com", models.RoleDeveloper)
	p := fx.CreateProject(ctx, "Website Revamp", manager.ID, time.Now(), 30)

	body := `{
		"title": "` + strings.Repeat("x", maxTitleLen+1) + `",
		"project": "` + p.ID.Hex() + `",
		"assignedTo": "` + dev.ID.Hex() + `",
		"dueDate": "2026-09-15T00:00:00Z"
	}`
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(postJSON("/", body), &manager))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"title"`) {
		t.Errorf("body = %s, want a title field error", rec.Body.String())
	}
}

func TestListByProjectFiltersAndPages(t *testing.T) {
	h, fx := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	manager := fx.CreateUser(ctx, "Pat Jones", "pat@example.com", models.RoleProjectManager)
	devA := fx.CreateUser(ctx, "Dev A", "deva@example.com", models.RoleDeveloper)
	devB := fx.CreateUser(ctx, "Dev B", "devb@example.com", models.RoleDeveloper)
	p := fx.CreateProject(ctx, "Website Revamp", manager.ID, time.Now(), 30)
	other := fx.CreateProject(ctx, "Other", manager.ID, time.Now(), 30)

	due := time.Now().Add(48 * time.Hour)
	taskA := fx.CreateTask(ctx, "Task A", p.ID, devA.ID, due)
	fx.CreateTask(ctx, "Task B", p.ID, devB.ID, due.Add(time.Hour))
	fx.CreateTask(ctx, "Elsewhere", other.ID, devA.ID, due)

	if _, err := h.Tasks.UpdateByID(ctx, taskA.ID, taskstore.Update{
		Status: statusPtr(models.TaskInProgress),
	}); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	list := func(query string) (titles []string, total int64) {
		t.Helper()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/project/"+p.ID.Hex()+query, nil)
		h.HandleListByProject(rec, testutil.WithChiURLParam(req, "projectID", p.ID.Hex()))
		if rec.Code != http.StatusOK {
			t.Fatalf("list %q status = %d: %s", query, rec.Code, rec.Body.String())
		}
		var resp struct {
			Tasks []struct {
				Title string `json:"title"`
			} `json:"tasks"`
			Meta struct {
				Total int64 `json:"total"`
			} `json:"meta"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode list %q: %v", query, err)
		}
		for _, task := range resp.Tasks {
			titles = append(titles, task.Title)
		}
		return titles, resp.Meta.Total
	}

	if titles, total := list(""); total != 2 || len(titles) != 2 {
		t.Errorf("unfiltered: titles = %v, total = %d", titles, total)
	}
	if titles, _ := list("?status=in-progress"); len(titles) != 1 || titles[0] != "Task A" {
		t.Errorf("status filter: titles = %v", titles)
	}
	if titles, _ := list("?assignee=" + devB.ID.Hex()); len(titles) != 1 || titles[0] != "Task B" {
		t.Errorf("assignee filter: titles = %v", titles)
	}
	if titles, total := list("?page=2&limit=1"); total != 2 || len(titles) != 1 || titles[0] != "Task B" {
		t.Errorf("paging: titles = %v, total = %d", titles, total)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/project/"+p.ID.Hex()+"?status=bogus", nil)
	h.HandleListByProject(rec, testutil.WithChiURLParam(req, "projectID", p.ID.Hex()))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func statusPtr(s models.TaskStatus) *models.TaskStatus { return &s }
