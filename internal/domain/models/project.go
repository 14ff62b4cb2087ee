// internal/domain/models/project.go
package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanned    ProjectStatus = "planned"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on-hold"
)

// IsValidProjectStatus reports whether value names a known project status.
func IsValidProjectStatus(value string) bool {
	switch ProjectStatus(value) {
	case ProjectPlanned, ProjectInProgress, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

// Comment is a note appended to a project. Comments have no independent
// lifecycle; they live and die with the project document.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Text      string             `bson:"text" json:"text"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Project is a client engagement managed by a user with a
// project-management-capable role. StartDate must never exceed EndDate.
type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	ClientName  string             `bson:"client_name" json:"clientName"`
	Budget      float64            `bson:"budget" json:"budget"`
	StartDate   time.Time          `bson:"start_date" json:"startDate"`
	EndDate     time.Time          `bson:"end_date" json:"endDate"`

	ProjectManager primitive.ObjectID `bson:"project_manager" json:"projectManager"`
	Goal           string             `bson:"goal" json:"goal"`
	Status         ProjectStatus      `bson:"status" json:"status"`
	Comments       []Comment          `bson:"comments" json:"comments"`

	CompanyAdminVerified bool `bson:"company_admin_verified" json:"companyAdminIsVerified"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CompletionPercentage estimates progress from elapsed calendar time,
// clamped to [0, 100].
func (p *Project) CompletionPercentage(now time.Time) int {
	if !now.After(p.StartDate) {
		return 0
	}
	if now.After(p.EndDate) {
		return 100
	}
	total := p.EndDate.Sub(p.StartDate)
	if total <= 0 {
		return 100
	}
	elapsed := now.Sub(p.StartDate)
	return int(math.Round(float64(elapsed) / float64(total) * 100))
}

// DurationDays returns the project length in whole days, rounded up.
func (p *Project) DurationDays() int {
	return int(math.Ceil(p.EndDate.Sub(p.StartDate).Hours() / 24))
}
