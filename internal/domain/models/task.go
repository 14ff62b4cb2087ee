// internal/domain/models/task.go
package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskPriority orders work within a project.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// IsValidTaskPriority reports whether value names a known priority.
func IsValidTaskPriority(value string) bool {
	switch TaskPriority(value) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOnHold     TaskStatus = "on-hold"
)

// IsValidTaskStatus reports whether value names a known task status.
func IsValidTaskStatus(value string) bool {
	switch TaskStatus(value) {
	case TaskPending, TaskInProgress, TaskCompleted, TaskOnHold:
		return true
	}
	return false
}

// Task is a unit of work inside a project, assigned to a single user.
type Task struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Project     primitive.ObjectID `bson:"project" json:"project"`
	AssignedTo  primitive.ObjectID `bson:"assigned_to" json:"assignedTo"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"createdBy"`
	Priority    TaskPriority       `bson:"priority" json:"priority"`
	Status      TaskStatus         `bson:"status" json:"status"`
	Remarks     string             `bson:"remarks" json:"remarks"`
	DueDate     time.Time          `bson:"due_date" json:"dueDate"`
	CompletedAt *time.Time         `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// DaysRemaining is the number of whole days until the due date, rounded
// up. Past-due tasks yield negative values.
func (t *Task) DaysRemaining(now time.Time) int {
	return int(math.Ceil(t.DueDate.Sub(now).Hours() / 24))
}

// IsOverdue reports whether the task is past its due date and not yet
// completed. Completed tasks are never overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status == TaskCompleted {
		return false
	}
	return now.After(t.DueDate)
}
