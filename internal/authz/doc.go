// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package authz authenticates API keys and decides which apps and tables
// each key may read.
//
// # Architecture
//
//	Request -> Authenticate -> RequireScope -> Handler
//	               |                |
//	         KeyStore (bcrypt)  Enforcer (Casbin)
//
// # Model
//
// Every configured key becomes a Casbin subject named after the key's
// name. The request tuple is (key, app, table, action):
//
//	[request_definition]
//	r = sub, app, table, act
//
//	[policy_definition]
//	p = sub, app, table, act
//
//	[matchers]
//	m = r.sub == p.sub && (p.app == "*" || r.app == p.app) &&
//	    (p.table == "*" || r.table == "*" || r.table == p.table) && r.act == p.act
//
// A request for table "*" asks whether the key may read any table of the
// app, which is how app listings are filtered.
//
// # Policies
//
// Policies are generated from configuration:
//
//	api_keys:
//	  - name: reporting
//	    key_hash: $2a$10$...
//	    apps:
//	      sales: ["orders", "returns"]
//	      finance: ["*"]
//
// becomes
//
//	p, reporting, sales, orders, read
//	p, reporting, sales, returns, read
//	p, reporting, finance, *, read
//
// # Keys
//
// A key is stored either in clear (compared in constant time) or as a
// bcrypt hash. Successful bcrypt verifications are cached for a short
// time so repeated requests do not pay the hashing cost.
//
// # Audit
//
// Every decision is counted in authz_decisions_total and written
// asynchronously to the log by AuditLogger. Denials are logged at warn
// level.
package authz
