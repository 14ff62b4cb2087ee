package projectstore

import (
	"context"
	"regexp"
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
	return &Store{c: db.Collection("projects")}
}

// Create inserts a new project.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	p.ID = primitive.NewObjectID()
	p.Name = normalize.Name(p.Name)
	if p.Status == "" {
		p.Status = models.ProjectPlanned
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID loads a project by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Filter narrows List. Zero values mean "no filter".
type Filter struct {
	Status     models.ProjectStatus
	Manager    primitive.ObjectID
	ClientName string
	StartFrom  time.Time
	StartTo    time.Time
}

func (f Filter) query() bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if !f.Manager.IsZero() {
		q["project_manager"] = f.Manager
	}
	if f.ClientName != "" {
		q["client_name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.ClientName), Options: "i"}
	}
	dateRange := bson.M{}
	if !f.StartFrom.IsZero() {
		dateRange["$gte"] = f.StartFrom
	}
	if !f.StartTo.IsZero() {
		dateRange["$lte"] = f.StartTo
	}
	if len(dateRange) > 0 {
		q["start_date"] = dateRange
	}
	return q
}

// List returns a filtered page of projects, newest first, with the
// total count.
func (s *Store) List(ctx context.Context, f Filter, skip, limit int64) ([]models.Project, int64, error) {
	filter := f.query()

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var out []models.Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update holds the editable project fields. Nil pointers leave stored
// values untouched.
type Update struct {
	Name        *string
	Description *string
	ClientName  *string
	Budget      *float64
	StartDate   *time.Time
	EndDate     *time.Time
	Goal        *string
	Status      *models.ProjectStatus
}

// UpdateByID applies a partial edit and returns the updated document.
func (s *Store) UpdateByID(ctx context.Context, id primitive.ObjectID, upd Update) (*models.Project, error) {
	set := bson.M{"updated_at": time.Now()}
	if upd.Name != nil {
		set["name"] = normalize.Name(*upd.Name)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.ClientName != nil {
		set["client_name"] = normalize.Name(*upd.ClientName)
	}
	if upd.Budget != nil {
		set["budget"] = *upd.Budget
	}
	if upd.StartDate != nil {
		set["start_date"] = *upd.StartDate
	}
	if upd.EndDate != nil {
		set["end_date"] = *upd.EndDate
	}
	if upd.Goal != nil {
		set["goal"] = *upd.Goal
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}

	after := options.After
	var p models.Project
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddComment appends a comment and returns the updated project.
func (s *Store) AddComment(ctx context.Context, id primitive.ObjectID, author primitive.ObjectID, text string) (*models.Project, error) {
	comment := models.Comment{
		ID:        primitive.NewObjectID(),
		Text:      text,
		Author:    author,
		CreatedAt: time.Now(),
	}

	after := options.After
	var p models.Project
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updated_at": time.Now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetVerification flips the company-admin verification flag on a
// project.
func (s *Store) SetVerification(ctx context.Context, id primitive.ObjectID, verified bool) (*models.Project, error) {
	after := options.After
	var p models.Project
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"company_admin_verified": verified, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a project. Returns mongo.ErrNoDocuments when nothing
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
