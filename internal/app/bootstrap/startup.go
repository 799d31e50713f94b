// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratagate/internal/app/resources"
	"github.com/dalemusser/stratagate/internal/app/system/tasks"
	"github.com/dalemusser/stratagate/internal/app/system/timeouts"
	"github.com/dalemusser/stratagate/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It loads the shared templates, applies the site name and timeouts, and
// starts the background maintenance jobs. Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()
	viewdata.Init(appCfg.SiteName)
	timeouts.Configure(timeouts.Config{Ping: appCfg.PingTimeout, Store: appCfg.StoreTimeout})

	startTaskRunner(appCfg, deps, logger)

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers the maintenance jobs the configured backends
// need and starts them. Redis expires its own keys, so it needs none.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	if deps.Limiter != nil && appCfg.RateLimitBackend != BackendRedis {
		taskRunner.Register(tasks.RateLimitPruneJob(deps.Limiter, appCfg.RateLimitPruneInterval, logger))
	}
	if deps.SessionsMongo != nil {
		taskRunner.Register(tasks.SessionCleanupJob(deps.SessionsMongo, appCfg.SessionCleanupInterval, logger))
	}

	taskRunner.Start()
}
