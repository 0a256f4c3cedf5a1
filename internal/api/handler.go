// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"context"
	"time"

	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/service"
)

// DataService is the part of service.DataService the handlers use.
type DataService interface {
	Apps() []string
	Tables(app string) ([]string, error)
	Resolve(app, table string) (service.Target, error)
	Fetch(ctx context.Context, target service.Target, q service.Query) (*service.Page, error)
	EngineVersion(ctx context.Context) (string, error)
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Service  DataService
	Enforcer *authz.Enforcer

	// BreakerState reports the engine circuit breaker state
	// ("closed", "half-open" or "open").
	BreakerState func() string

	// ProbeEngine makes readiness open a session and fetch the engine
	// version.
	ProbeEngine  bool
	ProbeTimeout time.Duration
}

// Handler serves the gateway endpoints.
type Handler struct {
	svc          DataService
	enforcer     *authz.Enforcer
	breakerState func() string
	probeEngine  bool
	probeTimeout time.Duration
	startTime    time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts HandlerOptions) *Handler {
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}
	breakerState := opts.BreakerState
	if breakerState == nil {
		breakerState = func() string { return "closed" }
	}
	return &Handler{
		svc:          opts.Service,
		enforcer:     opts.Enforcer,
		breakerState: breakerState,
		probeEngine:  opts.ProbeEngine,
		probeTimeout: probeTimeout,
		startTime:    time.Now(),
	}
}
