// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires this app into the WAFFLE lifecycle.
// Each function is called in order by app.Run, from configuration
// loading through backend setup, one-time startup work, HTTP handler
// construction, and finally graceful shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "stratagate",   // used only for logging/diagnostics
	LoadConfig:     LoadConfig,     // load core + app config
	ValidateConfig: ValidateConfig, // backend selectors and their settings
	ConnectDB:      ConnectDB,      // Mongo/Redis/Airtable clients and stores
	EnsureSchema:   EnsureSchema,   // Mongo indexes
	Startup:        Startup,        // shared templates, background jobs
	BuildHandler:   BuildHandler,   // router + middleware stack
	Shutdown:       Shutdown,       // stop jobs, close clients
}
