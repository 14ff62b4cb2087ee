// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/store/oauthstate"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
)

// PendingSignupCleanupJob removes staged signups whose verification
// window has lapsed. This is a backup for when MongoDB's TTL index
// cleanup is delayed.
func PendingSignupCleanupJob(pending *pendingstore.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "pending-signup-cleanup",
		Interval: 15 * time.Minute,
		Run: func(ctx context.Context) error {
			count, err := pending.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired pending signups", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob removes expired OAuth state tokens.
func OAuthStateCleanupJob(stateStore *oauthstate.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired oauth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}
