// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package api provides the gateway's HTTP surface using the Chi router.

Routes (prefix defaults to /api/v1):

	GET /health/live                              liveness, no dependencies
	GET /health/ready                             breaker state, optional engine probe
	GET /metrics                                  Prometheus exposition
	GET {prefix}/apps                             apps visible to the API key
	GET {prefix}/apps/{app}                       default table of an app
	GET {prefix}/apps/{app}/tables                tables of an app visible to the key
	GET {prefix}/apps/{app}/tables/{table}/data   one page of a table

Middleware Stack:

Every route runs RequestID, RealIP, Recoverer, CORS and Metrics. The
{prefix} routes add the optional rate limiter, API key authentication and,
per route, a casbin scope check on (app, table). Scope checks run before
the app or table is resolved, so a key that may not read an app receives
403 whether or not the app exists.

Data Query Parameters:

	page          page number, >= 1 (default 1)
	page_size     rows per page, 1..10000 (default 100)
	all_data      true forces page=1 and page_size=10000
	filter_field  generic equality filter field (with filter_value)
	sort_field    in-memory stable sort key (with sort_order asc|desc)
	yearmonth     comma list of YYYY-MM months, OR-combined
	<param>       any filter parameter configured for the table

Error Responses:

Every error is rendered by writeError from an *apperr.Error:

	{
	  "error": "NotFound",
	  "message": "table 'foo' not found",
	  "status_code": 404,
	  "details": {"resource": "table", "name": "foo"},
	  "request_id": "5b0b..."
	}

Successful data responses carry the extraction path in the
X-Extraction-Strategy header (direct, pivot or straight).
*/
package api
