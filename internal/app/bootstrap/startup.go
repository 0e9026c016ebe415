// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratasort/internal/app/store/session"
	"github.com/dalemusser/stratasort/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are
// complete, but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error will abort startup and prevent the server
// from starting.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	// Note: Indexes are created in EnsureSchema via indexes.EnsureAll().

	startTaskRunner(appCfg, deps, logger)
	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	// Sweep expired sessions and their archives.
	sessionStore := session.New(deps.MongoDatabase)
	taskRunner.Register(tasks.SessionRetentionJob(
		sessionStore,
		deps.FileStorage,
		logger,
		appCfg.Retention,
		appCfg.SweepInterval,
	))

	taskRunner.Start()
}
