// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/cubegate/internal/engine"
)

func TestHealthLive(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	rec := f.do(t, "", "/health/live")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "alive" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestHealthReady(t *testing.T) {
	unreachable := engine.Options{Host: "127.0.0.1", Port: 1, ConnectTimeout: 200 * time.Millisecond, Retries: 1}

	tests := []struct {
		name        string
		opts        fixtureOptions
		wantCode    int
		wantStatus  string
		wantVersion string
	}{
		{"breaker closed", fixtureOptions{}, http.StatusOK, "ready", ""},
		{"breaker open", fixtureOptions{breakerState: func() string { return "open" }}, http.StatusServiceUnavailable, "not_ready", ""},
		{"half open is ready", fixtureOptions{breakerState: func() string { return "half-open" }}, http.StatusOK, "ready", ""},
		{"engine probe", fixtureOptions{probeEngine: true}, http.StatusOK, "ready", "14.0.0"},
		{"engine probe fails", fixtureOptions{probeEngine: true, engineOpts: &unreachable}, http.StatusServiceUnavailable, "not_ready", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts)
			rec := f.do(t, "", "/health/ready")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var resp HealthResponse
			decode(t, rec, &resp)
			if resp.Status != tt.wantStatus || resp.EngineVersion != tt.wantVersion {
				t.Errorf("resp = %+v", resp)
			}
			if resp.Breaker == "" {
				t.Error("breaker state missing")
			}
			if tt.wantCode == http.StatusServiceUnavailable && tt.opts.probeEngine && resp.EngineError == "" {
				t.Error("engine_error missing")
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.do(t, "", "/health/live")

	rec := f.do(t, "", "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Error("api_requests_total not exported")
	}
}
