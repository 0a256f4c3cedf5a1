// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/middleware"
)

// Router wires handlers and middleware into a Chi mux.
type Router struct {
	handler       *Handler
	access        *authz.Middleware
	chiMiddleware *ChiMiddleware
	prefix        string
}

// NewRouter creates a Router. prefix defaults to /api/v1.
func NewRouter(handler *Handler, access *authz.Middleware, chiMW *ChiMiddleware, prefix string) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &Router{
		handler:       handler,
		access:        access,
		chiMiddleware: chiMW,
		prefix:        prefix,
	}
}

// AccessErrorWriter is the authz.ErrorWriter that renders 401 and 403
// responses in the API error shape.
func AccessErrorWriter() authz.ErrorWriter {
	return writeError
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.Metrics)
	r.Use(APISecurityHeaders())

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	// ========================
	// Health and Metrics
	// ========================
	r.Get("/health/live", router.handler.HealthLive)
	r.Get("/health/ready", router.handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Data Endpoints
	// ========================
	r.Route(router.prefix, func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(chimiddleware.Compress(5, "application/json"))
		r.Use(router.access.Authenticate)

		r.Get("/apps", router.handler.Apps)

		r.Route("/apps/{app}", func(r chi.Router) {
			r.With(router.access.RequireScope(router.defaultTableScope)).
				Get("/", router.handler.DefaultTableData)
			r.With(router.access.RequireScope(appScope)).
				Get("/tables", router.handler.Tables)
			r.With(router.access.RequireScope(tableScope)).
				Get("/tables/{table}/data", router.handler.TableData)
		})
	})

	return r
}

// appScope targets any table of the app in the URL.
func appScope(r *http.Request) (string, string) {
	return chi.URLParam(r, "app"), authz.AnyTable
}

// tableScope targets the table in the URL.
func tableScope(r *http.Request) (string, string) {
	return chi.URLParam(r, "app"), chi.URLParam(r, "table")
}

// defaultTableScope targets the app's default table. Apps without one
// are checked against any table and fail later with 404.
func (router *Router) defaultTableScope(r *http.Request) (string, string) {
	app := chi.URLParam(r, "app")
	target, err := router.handler.svc.Resolve(app, "")
	if err != nil {
		return app, authz.AnyTable
	}
	return app, target.TableName
}
