// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/logging"
)

// breakerOpen is the breaker state that makes the gateway not ready.
const breakerOpen = "open"

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status        string    `json:"status"`
	Breaker       string    `json:"breaker,omitempty"`
	EngineVersion string    `json:"engine_version,omitempty"`
	EngineError   string    `json:"engine_error,omitempty"`
	Uptime        float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthLive reports that the process is up, regardless of the engine.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "alive",
		Uptime:    time.Since(h.startTime).Seconds(),
		Timestamp: time.Now(),
	})
}

// HealthReady returns 200 only when the engine breaker is not open and,
// when probing is enabled, the engine answers a version request.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ready",
		Breaker:   h.breakerState(),
		Timestamp: time.Now(),
	}
	ready := resp.Breaker != breakerOpen

	if ready && h.probeEngine {
		ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
		version, err := h.svc.EngineVersion(ctx)
		cancel()
		if err != nil {
			ready = false
			resp.EngineError = apperr.As(err).Message
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness probe failed")
		}
		resp.EngineVersion = version
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "not_ready"
	}
	resp.Uptime = time.Since(h.startTime).Seconds()
	respondJSON(w, r, status, resp)
}
