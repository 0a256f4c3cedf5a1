// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
)

// GenerateCorrelationID returns a short ID used to tag one engine session.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a context with a freshly generated correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a new context carrying the HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with the request and correlation
// IDs found in ctx.
//
//	logging.Ctx(ctx).Info().Str("object", id).Msg("layout fetched")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if ctx == nil {
		return &l
	}
	c := l.With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	l = c.Logger()
	return &l
}
