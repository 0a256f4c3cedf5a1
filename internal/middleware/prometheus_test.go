// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cubegate/internal/metrics"
)

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/v1/apps/{app}/tables/{table}/data", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	const pattern = "/api/v1/apps/{app}/tables/{table}/data"
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, pattern, "418")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/api/v1/apps/sales/tables/orders/data", "/api/v1/apps/hr/tables/staff/data"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("counter delta = %v, want 2", got)
	}
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/known", func(http.ResponseWriter, *http.Request) {})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, unmatchedEndpoint, "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}

func TestMetrics_ActiveGaugeReturnsToBaseline(t *testing.T) {
	before := testutil.ToFloat64(metrics.APIActiveRequests)
	var during float64
	h := Metrics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(metrics.APIActiveRequests)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if during != before+1 {
		t.Errorf("gauge during request = %v, want %v", during, before+1)
	}
	if after := testutil.ToFloat64(metrics.APIActiveRequests); after != before {
		t.Errorf("gauge after request = %v, want %v", after, before)
	}
}

func TestMetricsResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	w := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusInternalServerError)
	if w.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", w.statusCode)
	}
	if w.Unwrap() != rec {
		t.Error("Unwrap did not return the underlying writer")
	}
}
