// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/cubegate/internal/logging"
)

// HTTPServer matches the *http.Server lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under supervision. On context
// cancellation it shuts the server down, waiting at most shutdownTimeout
// for in-flight requests, including long extractions, to finish.
//
//	server := &http.Server{Addr: ":8000", Handler: router.SetupChi()}
//	tree.AddAPIService(services.NewHTTPServerService(server, 30*time.Second))
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

// NewHTTPServerService creates a new HTTP server service wrapper.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	svc := &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
	}
	if s, ok := server.(*http.Server); ok {
		svc.addr = s.Addr
	}
	return svc
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logging.Info().Str("addr", h.addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		logging.Info().Dur("timeout", h.shutdownTimeout).Msg("HTTP server shutting down")

		// The serve context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for suture's logs.
func (h *HTTPServerService) String() string {
	return "http-server"
}
