package taskstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carverdev/projhub/internal/app/system/normalize"
	"github.com/carverdev/projhub/internal/domain/models"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

// Create inserts a new task.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = primitive.NewObjectID()
	t.Title = normalize.Name(t.Title)
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.Status == "" {
		t.Status = models.TaskPending
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ProjectFilter narrows a project task listing. Zero values match
// everything.
type ProjectFilter struct {
	Status   models.TaskStatus
	Priority models.TaskPriority
	Assignee primitive.ObjectID
}

func (f ProjectFilter) query(projectID primitive.ObjectID) bson.M {
	q := bson.M{"project": projectID}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Priority != "" {
		q["priority"] = f.Priority
	}
	if !f.Assignee.IsZero() {
		q["assigned_to"] = f.Assignee
	}
	return q
}

// ListByProject returns a filtered page of a project's tasks, soonest
// due first, with the total count.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID, f ProjectFilter, skip, limit int64) ([]models.Task, int64, error) {
	filter := f.query(projectID)

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "due_date", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListByAssignee returns every task assigned to a user, soonest due
// first.
func (s *Store) ListByAssignee(ctx context.Context, userID primitive.ObjectID) ([]models.Task, error) {
	return s.find(ctx, bson.M{"assigned_to": userID})
}

// ListDueSoon returns incomplete tasks due within the window starting
// at now.
func (s *Store) ListDueSoon(ctx context.Context, now time.Time, window time.Duration) ([]models.Task, error) {
	return s.find(ctx, bson.M{
		"status":   bson.M{"$ne": models.TaskCompleted},
		"due_date": bson.M{"$gte": now, "$lte": now.Add(window)},
	})
}

// ListOverdue returns incomplete tasks whose due date has passed.
func (s *Store) ListOverdue(ctx context.Context, now time.Time) ([]models.Task, error) {
	return s.find(ctx, bson.M{
		"status":   bson.M{"$ne": models.TaskCompleted},
		"due_date": bson.M{"$lt": now},
	})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AssigneeStat summarizes one user's workload.
type AssigneeStat struct {
	AssignedTo primitive.ObjectID `bson:"_id" json:"assignedTo"`
	Total      int                `bson:"total" json:"total"`
	Completed  int                `bson:"completed" json:"completed"`
	Overdue    int                `bson:"overdue" json:"overdue"`
}

// AssigneeStats aggregates task counts per assignee across a project.
func (s *Store) AssigneeStats(ctx context.Context, projectID primitive.ObjectID, now time.Time) ([]AssigneeStat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"project": projectID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$assigned_to",
			"total": bson.M{"$sum": 1},
			"completed": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$status", models.TaskCompleted}}, 1, 0,
			}}},
			"overdue": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{"$status", models.TaskCompleted}},
					bson.M{"$lt": bson.A{"$due_date", now}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.M{"total": -1}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []AssigneeStat
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update holds the editable task fields. Nil pointers leave stored
// values untouched.
type Update struct {
	Title       *string
	Description *string
	AssignedTo  *primitive.ObjectID
	Priority    *models.TaskPriority
	Status      *models.TaskStatus
	Remarks     *string
	DueDate     *time.Time
}

// UpdateByID applies a partial edit. Moving into or out of the
// completed status sets or clears the completion timestamp.
func (s *Store) UpdateByID(ctx context.Context, id primitive.ObjectID, upd Update) (*models.Task, error) {
	now := time.Now()
	set := bson.M{"updated_at": now}
	unset := bson.M{}

	if upd.Title != nil {
		set["title"] = normalize.Name(*upd.Title)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.AssignedTo != nil {
		set["assigned_to"] = *upd.AssignedTo
	}
	if upd.Priority != nil {
		set["priority"] = *upd.Priority
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
		if *upd.Status == models.TaskCompleted {
			set["completed_at"] = now
		} else {
			unset["completed_at"] = ""
		}
	}
	if upd.Remarks != nil {
		set["remarks"] = *upd.Remarks
	}
	if upd.DueDate != nil {
		set["due_date"] = *upd.DueDate
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	after := options.After
	var t models.Task
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes a task. Returns mongo.ErrNoDocuments when nothing
// matched.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteByProject removes every task belonging to a project. Called
// when the project itself is deleted.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"project": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
