// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package middleware provides the infrastructure middleware shared by every
gateway route.

Key Components:

  - RequestID: honours or generates X-Request-ID and seeds the logging context
  - Metrics: Prometheus request counters, latency histograms and in-flight gauge

Both are Chi-compatible (func(http.Handler) http.Handler). Access control
lives in the authz package and response compression uses chi's Compress.

Middleware Stack:

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

Metrics are labelled with the matched Chi route pattern rather than the raw
path, so /api/v1/apps/sales/tables/orders/data and any other table share one
series:

	api_requests_total{method="GET",endpoint="/api/v1/apps/{app}/tables/{table}/data",status_code="200"}
*/
package middleware
