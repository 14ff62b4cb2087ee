// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/carverdev/projhub/internal/app/store/oauthstate"
	pendingstore "github.com/carverdev/projhub/internal/app/store/pendingsignups"
	"github.com/carverdev/projhub/internal/app/system/tasks"
)

// runner drives the periodic cleanup jobs. Started here, stopped in
// Shutdown.
var runner *tasks.Runner

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// ProjHub launches its background job runner here; MongoDB's TTL
// monitor does the primary expiry work and these jobs backstop it.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	runner = tasks.NewRunner(logger,
		tasks.PendingSignupCleanupJob(pendingstore.New(deps.MongoDatabase), logger),
		tasks.OAuthStateCleanupJob(oauthstate.New(deps.MongoDatabase), logger),
	)
	runner.Start()
	return nil
}
