// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureCompanies(ctx, db); err != nil {
		problems = append(problems, "companies: "+err.Error())
	}
	if err := ensureProjects(ctx, db); err != nil {
		problems = append(problems, "projects: "+err.Error())
	}
	if err := ensureTasks(ctx, db); err != nil {
		problems = append(problems, "tasks: "+err.Error())
	}
	if err := ensureOTPs(ctx, db); err != nil {
		problems = append(problems, "otps: "+err.Error())
	}
	if err := ensurePendingSignups(ctx, db); err != nil {
		problems = append(problems, "pending_signups: "+err.Error())
	}
	if err := ensureOAuthStates(ctx, db); err != nil {
		problems = append(problems, "oauth_states: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ensureIndexSet creates the desired indexes for one collection. An
// IndexOptionsConflict means an index with the same keys already exists
// under another name; we keep the existing one rather than churn.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var name string
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}

		start := time.Now()
		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isOptionsConflictErr(err) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", name))
				continue
			}
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Mongo/DocDB returns IndexOptionsConflict when an index with the same
// keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email must be unique across all users.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Directory lists filter by role.
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_role_id"),
		},
		// Password reset lookup by hashed token.
		{
			Keys:    bson.D{{Key: "password_reset_token", Value: 1}},
			Options: options.Index().SetName("idx_users_reset_token"),
		},
	})
}

func ensureCompanies(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("companies")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One company per admin account.
		{
			Keys:    bson.D{{Key: "company_admin", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_companies_admin"),
		},
		// Webhook handlers look companies up by subscription.
		{
			Keys:    bson.D{{Key: "stripe_subscription_id", Value: 1}},
			Options: options.Index().SetName("idx_companies_subscription"),
		},
		{
			Keys:    bson.D{{Key: "stripe_customer_id", Value: 1}},
			Options: options.Index().SetName("idx_companies_customer"),
		},
	})
}

func ensureProjects(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("projects")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "project_manager", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_projects_manager_id"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}},
			Options: options.Index().SetName("idx_projects_status_enddate"),
		},
	})
}

func ensureTasks(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("tasks")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "project", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_tasks_project_status"),
		},
		{
			Keys:    bson.D{{Key: "assigned_to", Value: 1}, {Key: "due_date", Value: 1}},
			Options: options.Index().SetName("idx_tasks_assignee_due"),
		},
		// Due-soon and overdue sweeps scan by due date.
		{
			Keys:    bson.D{{Key: "due_date", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_tasks_due_status"),
		},
	})
}

func ensureOTPs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("otps")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One live code per email; re-sends replace the document.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_otps_email"),
		},
		// TTL: Mongo reaps expired codes shortly after expires_at.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_otps_expires"),
		},
	})
}

func ensurePendingSignups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("pending_signups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_pending_email"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_pending_expires"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("oauth_states")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_state"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_oauth_expires"),
		},
	})
}
