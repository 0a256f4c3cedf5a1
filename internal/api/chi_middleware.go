// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/cubegate/internal/apperr"
	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	// Rate limiting configuration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// APIKeyHeader is used to key the rate limiter per API key.
	APIKeyHeader string
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", authz.DefaultKeyHeader},
		CORSExposedHeaders: []string{"X-Request-ID", extractionStrategyHeader},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RateLimitDisabled: true,
		APIKeyHeader:      authz.DefaultKeyHeader,
	}
}

// ChiMiddlewareConfigFromSecurity builds the middleware configuration from
// the security section of the gateway config.
func ChiMiddlewareConfigFromSecurity(sec config.SecurityConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = sec.CORSOrigins
	if sec.APIKeyHeader != "" {
		c.APIKeyHeader = sec.APIKeyHeader
		if sec.APIKeyHeader != authz.DefaultKeyHeader {
			c.CORSAllowedHeaders = append(c.CORSAllowedHeaders, sec.APIKeyHeader)
		}
	}
	c.RateLimitDisabled = !sec.RateLimitEnabled
	if sec.RateLimitReqs > 0 {
		c.RateLimitRequests = sec.RateLimitReqs
	}
	if sec.RateLimitWindow > 0 {
		c.RateLimitWindow = sec.RateLimitWindow
	}
	return c
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: config.CORSAllowedMethods,
		AllowedHeaders: config.CORSAllowedHeaders,
		ExposedHeaders: config.CORSExposedHeaders,
		MaxAge:         config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns a Chi-compatible CORS middleware using go-chi/cors.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns a limiter keyed by API key, or by client IP when no
// key is presented. Rejections use the standard error body.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(m.rateLimitKey),
		httprate.WithLimitHandler(m.onLimit),
	)
}

// rateLimitKey hashes the presented key so raw keys never sit in the
// limiter's table.
func (m *ChiMiddleware) rateLimitKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(m.config.APIKeyHeader))
	if key == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	if key == "" {
		return httprate.KeyByIP(r)
	}
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:8]), nil
}

func (m *ChiMiddleware) onLimit(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.Inc()
	logging.Ctx(r.Context()).Warn().
		Str("remote_addr", r.RemoteAddr).
		Msg("Rate limit exceeded")
	writeError(w, r, apperr.New(apperr.KindRateLimit, "rate limit of %d requests per %s exceeded",
		m.config.RateLimitRequests, m.config.RateLimitWindow).
		WithDetail("limit", m.config.RateLimitRequests).
		WithDetail("window", m.config.RateLimitWindow.String()))
}

// APISecurityHeaders returns a middleware that adds security headers to API responses.
//
// Headers added:
//   - X-Content-Type-Options: nosniff
//   - X-Frame-Options: DENY
//   - Referrer-Policy: strict-origin-when-cross-origin
//
// HSTS is added when the request is over HTTPS or behind a TLS-terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
