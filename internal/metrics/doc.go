// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package metrics exposes Prometheus instrumentation for the gateway.
//
// Metric families:
//
//   - api_*: HTTP request counts, latency and in-flight requests
//   - engine_*: JSON-RPC calls, connect attempts and open sessions
//   - extraction_*: strategy choice, fallbacks, row window retries and rows returned
//   - circuit_breaker_*: state of the engine connect breaker
//   - page_cache_*: page result cache hits and misses
//   - authz_*: access decisions
//
// All collectors register with the default registry through promauto and
// are served by promhttp on /metrics.
package metrics
