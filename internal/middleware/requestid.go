// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/cubegate/internal/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds IDs accepted from upstream proxies.
const maxRequestIDLen = 128

// RequestID middleware reuses a well-formed upstream X-Request-ID or
// generates a UUID, echoes it in the response and stores it, together
// with a fresh correlation ID, in the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return logging.RequestIDFromContext(ctx)
}

// validRequestID accepts printable ASCII without spaces so that upstream
// IDs cannot inject log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] <= 0x20 || id[i] >= 0x7F {
			return false
		}
	}
	return true
}
