// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

const breakerName = "qlik-engine"

// ErrBreakerOpen is returned by Open while the engine circuit is open.
var ErrBreakerOpen = errors.New("engine circuit breaker is open")

// BreakerSettings tune the connect circuit breaker.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

// Connector opens engine sessions. Each Open returns a fresh Session; the
// Connector paces session creation and trips a circuit breaker when the
// engine keeps refusing connections.
type Connector struct {
	opts    Options
	cb      *gobreaker.CircuitBreaker[*Session]
	limiter *rate.Limiter
}

// NewConnector builds a Connector from engine configuration.
func NewConnector(cfg config.EngineConfig) (*Connector, error) {
	tlsCfg, err := BuildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-Qlik-User", fmt.Sprintf("UserDirectory=%s; UserId=%s", cfg.UserDirectory, cfg.UserID))

	opts := Options{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Header:         header,
		TLSConfig:      tlsCfg,
		ConnectTimeout: cfg.ConnectTimeout,
		ReceiveTimeout: cfg.ReceiveTimeout,
		Retries:        cfg.Retries,
	}
	limit := rate.Inf
	if cfg.SessionsPerSecond > 0 {
		limit = rate.Limit(cfg.SessionsPerSecond)
	}
	return NewConnectorWithOptions(opts, limit, cfg.SessionBurst, BreakerSettings{
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
		OpenTimeout:  cfg.BreakerOpenTimeout,
	}), nil
}

// NewConnectorWithOptions builds a Connector with explicit session options.
func NewConnectorWithOptions(opts Options, limit rate.Limit, burst int, bs BreakerSettings) *Connector {
	if burst < 1 {
		burst = 1
	}
	if bs.MinRequests == 0 {
		bs.MinRequests = 10
	}
	if bs.FailureRatio <= 0 || bs.FailureRatio > 1 {
		bs.FailureRatio = 0.6
	}
	if bs.OpenTimeout <= 0 {
		bs.OpenTimeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= bs.FailureRatio {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening engine circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		// A caller giving up is not an engine failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	return &Connector{
		opts:    opts,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Options returns the session options used for new sessions.
func (c *Connector) Options() Options { return c.opts }

// Open waits for the session limiter and connects a new Session. The caller
// owns the returned Session and must Close it.
func (c *Connector) Open(ctx context.Context) (*Session, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for engine session slot: %w", err)
	}

	sess, err := c.cb.Execute(func() (*Session, error) {
		s := NewSession(c.opts)
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
			return nil, &ConnectionError{Endpoints: c.opts.Endpoints(), Err: fmt.Errorf("%w: %v", ErrBreakerOpen, err)}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(float64(c.cb.Counts().ConsecutiveFailures))
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(breakerName).Set(0)
	return sess, nil
}

// State returns the breaker state: "closed", "half-open" or "open".
func (c *Connector) State() string {
	return stateToString(c.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
