// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/logging"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"status_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// newErrorResponse maps err onto the response body. Errors without a
// kind become a generic 500 so internal messages are not leaked.
func newErrorResponse(r *http.Request, err error) ErrorResponse {
	e := apperr.As(err)
	return ErrorResponse{
		Error:      string(e.Kind),
		Message:    e.Message,
		StatusCode: e.Kind.StatusCode(),
		Details:    e.Details,
		RequestID:  logging.RequestIDFromContext(r.Context()),
	}
}

// writeError renders err as JSON. Server-side failures are logged at
// error level, client mistakes at debug.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := newErrorResponse(r, err)

	log := logging.Ctx(r.Context())
	event := log.Debug()
	if resp.StatusCode >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Err(err).
		Str("kind", resp.Error).
		Int("status", resp.StatusCode).
		Str("method", r.Method).
		Str("path", sanitizeLogValue(r.URL.Path)).
		Msg("Request failed")

	respondJSON(w, r, resp.StatusCode, resp)
}

// sanitizeLogValue removes control characters from strings to prevent log
// injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// notFoundHandler and methodNotAllowedHandler keep Chi's fallbacks in
// the same error shape as everything else.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperr.NotFound("route", r.URL.Path))
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{
		Error:      "MethodNotAllowed",
		Message:    fmt.Sprintf("method %s not allowed", r.Method),
		StatusCode: http.StatusMethodNotAllowed,
		RequestID:  logging.RequestIDFromContext(r.Context()),
	})
}
