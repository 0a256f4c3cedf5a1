// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package logging provides the process-wide zerolog logger for Cubegate.
//
// The gateway logs as structured JSON in production and as a colored
// console stream during development. Every HTTP request carries a request
// ID and every engine session a short correlation ID; Ctx attaches both to
// log lines so an extraction can be traced from the HTTP access line down
// to the individual JSON-RPC calls it issued.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("app", app).Msg("extraction started")
//	logging.Ctx(ctx).Warn().Err(err).Msg("selection failed")
//
// # Best Practices
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// chain is silently dropped.
package logging
