// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package apperr defines the gateway's error taxonomy.
//
// Every error that reaches an HTTP client is an *Error carrying a Kind. The
// API layer maps kinds to status codes in one place (Kind.StatusCode) so
// handlers and the extraction engine never pick HTTP codes themselves.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for external reporting.
type Kind string

const (
	KindConnection     Kind = "QlikConnectionError"
	KindAuthentication Kind = "AuthenticationError"
	KindAccessDenied   Kind = "AccessDenied"
	KindNotFound       Kind = "NotFound"
	KindEngine         Kind = "QlikEngineError"
	KindExtraction     Kind = "DataExtractionError"
	KindTimeout        Kind = "TimeoutError"
	KindValidation     Kind = "ValidationError"
	KindRateLimit      Kind = "RateLimitError"
	KindConfiguration  Kind = "ConfigurationError"
	KindInternal       Kind = "InternalError"
)

// StatusCode returns the HTTP status used when an error of this kind is
// returned to a client.
func (k Kind) StatusCode() int {
	switch k {
	case KindConnection:
		return http.StatusServiceUnavailable
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindEngine:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified gateway error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns e after setting a detail key.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound reports an unmapped or missing resource.
func NotFound(resource, name string) *Error {
	return New(KindNotFound, "%s '%s' not found", resource, name).
		WithDetail("resource", resource).
		WithDetail("name", name)
}

// Validation reports malformed request parameters.
func Validation(message string, details map[string]interface{}) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain, or a KindInternal error
// wrapping err.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
