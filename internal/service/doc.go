// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package service resolves logical app and table names to engine objects
// and runs extractions against fresh engine sessions.
//
// Each Fetch runs on a worker goroutine that owns one session from open
// to close. A weighted semaphore caps concurrent sessions and identical
// in-flight requests share one worker. The caller waits at most
// extraction.request_timeout; when it gives up the worker still releases
// its session and clears its selections.
//
// Successful pages are cached when a page cache is configured. Errors are
// returned as *apperr.Error so the API can map them to status codes.
package service
