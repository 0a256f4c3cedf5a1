// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/logging"
)

// DefaultKeyHeader carries the API key when no header is configured.
const DefaultKeyHeader = "X-API-Key"

type contextKey string

const subjectKey contextKey = "authz_subject"

// WithSubject stores the authenticated key name in ctx.
func WithSubject(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, subjectKey, name)
}

// SubjectFromContext returns the authenticated key name.
func SubjectFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(subjectKey).(string)
	return name, ok && name != ""
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// ScopeFunc extracts the (app, table) a request targets.
type ScopeFunc func(r *http.Request) (app, table string)

// Middleware authenticates API keys and enforces access scopes.
type Middleware struct {
	keys       *KeyStore
	enforcer   *Enforcer
	header     string
	writeError ErrorWriter
}

// NewMiddleware creates the access middleware. writeError renders the
// 401 and 403 responses.
func NewMiddleware(keys *KeyStore, enforcer *Enforcer, header string, writeError ErrorWriter) *Middleware {
	if header == "" {
		header = DefaultKeyHeader
	}
	return &Middleware{
		keys:       keys,
		enforcer:   enforcer,
		header:     header,
		writeError: writeError,
	}
}

// presentedKey reads the configured header, falling back to a bearer token.
func (m *Middleware) presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(m.header)); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// Authenticate rejects requests without a valid API key.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.presentedKey(r)
		if key == "" {
			m.writeError(w, r, apperr.New(apperr.KindAuthentication, "missing API key").
				WithDetail("header", m.header))
			return
		}

		name, ok := m.keys.Authenticate(key)
		if !ok {
			logging.Ctx(r.Context()).Warn().
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected invalid API key")
			m.writeError(w, r, apperr.New(apperr.KindAuthentication, "invalid API key"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), name)))
	})
}

// RequireScope rejects requests whose key may not read the scope's table.
// It must run after Authenticate.
func (m *Middleware) RequireScope(scope ScopeFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				m.writeError(w, r, apperr.New(apperr.KindAuthentication, "no authenticated API key"))
				return
			}

			app, table := scope(r)
			allowed, err := m.enforcer.Enforce(r.Context(), subject, app, table)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				m.writeError(w, r, apperr.Wrap(apperr.KindInternal, err, "authorization failed"))
				return
			}
			if !allowed {
				m.writeError(w, r, apperr.New(apperr.KindAccessDenied, "API key may not access %s", scopeName(app, table)).
					WithDetail("app", app).
					WithDetail("table", table))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func scopeName(app, table string) string {
	if table == "" || table == AnyTable {
		return "app " + app
	}
	return "table " + app + "/" + table
}
