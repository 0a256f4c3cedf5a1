// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/engine/enginetest"
)

func TestNewConnector_SendsUserHeader(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})

	c, err := engine.NewConnector(config.EngineConfig{
		Host:           srv.Host(),
		Port:           srv.Port(),
		UserDirectory:  "INTERNAL",
		UserID:         "sa_engine",
		CertPath:       "/nonexistent/client.pem",
		KeyPath:        "/nonexistent/client_key.pem",
		ConnectTimeout: 2 * time.Second,
		ReceiveTimeout: 5 * time.Second,
		Retries:        4,
	})
	if err != nil {
		t.Fatalf("NewConnector() error = %v", err)
	}

	sess, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sess.Close()

	headers := srv.Headers()
	if len(headers) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(headers))
	}
	if got := headers[0].Get("X-Qlik-User"); got != "UserDirectory=INTERNAL; UserId=sa_engine" {
		t.Errorf("X-Qlik-User = %q", got)
	}
	if c.State() != "closed" {
		t.Errorf("State() = %q, want closed", c.State())
	}
}

func TestConnector_EachOpenIsAFreshSession(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})
	c := engine.NewConnectorWithOptions(srv.Options(), rate.Inf, 1, engine.BreakerSettings{})

	for i := 0; i < 3; i++ {
		sess, err := c.Open(context.Background())
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i, err)
		}
		_ = sess.Close()
	}
	if srv.Connections() != 3 {
		t.Errorf("expected 3 connections, got %d", srv.Connections())
	}
}

func TestConnector_BreakerOpensAfterFailures(t *testing.T) {
	opts := engine.Options{Host: "127.0.0.1", Port: 1, ConnectTimeout: 200 * time.Millisecond, Retries: 1}
	c := engine.NewConnectorWithOptions(opts, rate.Inf, 1, engine.BreakerSettings{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenTimeout:  time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := c.Open(context.Background())
		var cerr *engine.ConnectionError
		if !errors.As(err, &cerr) {
			t.Fatalf("Open() #%d expected ConnectionError, got %v", i, err)
		}
	}
	if c.State() != "open" {
		t.Fatalf("State() = %q, want open", c.State())
	}

	_, err := c.Open(context.Background())
	if !errors.Is(err, engine.ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	var cerr *engine.ConnectionError
	if !errors.As(err, &cerr) {
		t.Errorf("expected breaker rejection to surface as ConnectionError, got %T", err)
	}
}

func TestConnector_LimiterHonoursContext(t *testing.T) {
	c := engine.NewConnectorWithOptions(engine.Options{Host: "127.0.0.1", Port: 1}, rate.Limit(0.001), 1, engine.BreakerSettings{})

	// Drain the single token.
	_, _ = c.Open(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Open(ctx); err == nil {
		t.Fatal("expected limiter wait to fail")
	}
}
