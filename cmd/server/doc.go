// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package main is the entry point for the Cubegate server.

Cubegate exposes the hypercube tables of Qlik Sense documents as paginated
JSON over REST. Each configured table maps to a visual object in an app;
requests open an engine session, extract the page and close the session.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("cubegate")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   ├── Config reload (when a config file is in use)
	│   └── Page cache GC (when the cache is on disk)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Page cache: BadgerDB, in memory or on disk
 4. Engine connector: websocket sessions behind a rate limiter and breaker
 5. Access control: API key store and Casbin enforcer
 6. HTTP Server: Chi router with middleware stack
 7. Supervisor Tree

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	CONFIG_PATH=/etc/cubegate/config.yaml
	QLIK_SENSE_HOST=qlik.example.com
	QLIK_ENGINE_PORT=4747
	PORT=8000
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

Apps, tables and API keys belong in the config file. APP_MAPPINGS_JSON,
DEFAULT_TABLE_MAPPINGS_JSON and API_KEY are still read for older
deployments.

# Signal Handling

SIGINT and SIGTERM stop the tree. The HTTP server drains in-flight
requests for server.shutdown_timeout before the process exits.
*/
package main
