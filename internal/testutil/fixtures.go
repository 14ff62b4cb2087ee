package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carverdev/projhub/internal/domain/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an active account with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, role models.Role) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateCompany inserts a company owned by adminID on the given plan.
func (f *Fixtures) CreateCompany(ctx context.Context, name string, adminID primitive.ObjectID, plan models.PlanID) models.Company {
	f.t.Helper()

	now := time.Now().UTC()
	co := models.Company{
		ID:                 primitive.NewObjectID(),
		CompanyName:        name,
		CompanyAdmin:       adminID,
		PlanID:             plan,
		SubscriptionStatus: models.SubscriptionActive,
		CurrentPeriodEnd:   now.Add(30 * 24 * time.Hour),
		Limits:             models.LimitsForPlan(plan),
		LastEventAt:        now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := f.db.Collection("companies").InsertOne(ctx, co); err != nil {
		f.t.Fatalf("failed to create test company: %v", err)
	}
	return co
}

// CreateProject inserts a project managed by managerID running from
// start for the given number of days.
func (f *Fixtures) CreateProject(ctx context.Context, name string, managerID primitive.ObjectID, start time.Time, days int) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Project{
		ID:             primitive.NewObjectID(),
		Name:           name,
		ClientName:     "Test Client",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, days),
		ProjectManager: managerID,
		Status:         models.ProjectPlanned,
		Comments:       []models.Comment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// CreateTask inserts a task in projectID assigned to assigneeID with
// the given due date.
func (f *Fixtures) CreateTask(ctx context.Context, title string, projectID, assigneeID primitive.ObjectID, due time.Time) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:         primitive.NewObjectID(),
		Title:      title,
		Project:    projectID,
		AssignedTo: assigneeID,
		CreatedBy:  assigneeID,
		Priority:   models.PriorityMedium,
		Status:     models.TaskPending,
		DueDate:    due,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := f.db.Collection("tasks").InsertOne(ctx, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return task
}
