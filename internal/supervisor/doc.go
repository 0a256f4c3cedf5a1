// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package supervisor provides process supervision for the gateway using suture v4.

The tree separates background upkeep from request serving so that a failing
config watcher or cache collector never takes the HTTP listener down:

	RootSupervisor ("cubegate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── ConfigReloadService (when a config file exists)
	│   └── CacheGCService (when the page cache is on disk)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog into the zerolog-backed slog handler from the
logging package.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(services.NewCacheGCService(store, 5*time.Minute, 0.5))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

See the services subpackage for the service wrappers.
*/
package supervisor
