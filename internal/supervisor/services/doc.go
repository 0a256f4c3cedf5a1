// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package services provides suture.Service wrappers for the gateway's
long-running components.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

and fmt.Stringer so supervisor events name the service.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve
  - Returns listener errors so the supervisor retries with backoff

Config Reload (ConfigReloadService):
  - Watches the YAML config file through the koanf file provider
  - Reloads the full configuration and hands it to an apply function
  - Keeps the previous configuration when the new file is invalid
  - Watch errors end Serve so that suture re-establishes the watch

Cache GC (CacheGCService):
  - Runs BadgerDB value log garbage collection on a ticker
  - Repeats a pass while files are being rewritten
  - Does nothing for in-memory caches
*/
package services
