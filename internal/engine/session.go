// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

// ErrReceiveTimeout is returned when no terminal response arrived within
// the session's receive timeout.
var ErrReceiveTimeout = errors.New("engine receive timeout")

// Options configure a Session.
type Options struct {
	Host string
	Port int

	// Header is sent with the websocket handshake (X-Qlik-User).
	Header http.Header

	// TLSConfig is used for wss:// candidates. Nil uses Go defaults.
	TLSConfig *tls.Config

	ConnectTimeout time.Duration
	ReceiveTimeout time.Duration

	// Retries is the number of endpoint candidates tried, clamped to
	// [1, len(candidates)].
	Retries int
}

// Endpoints returns the endpoint candidates Connect tries, in order.
func (o Options) Endpoints() []string {
	hostport := net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	all := []string{
		"wss://" + hostport + "/app/engineData",
		"wss://" + hostport + "/app",
		"ws://" + hostport + "/app/engineData",
		"ws://" + hostport + "/app",
	}
	n := o.Retries
	if n < 1 {
		n = 1
	}
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// Session is one websocket connection to the engine. A Session is not
// reusable after Close; open a new one instead.
type Session struct {
	opts Options

	mu             sync.Mutex
	conn           *websocket.Conn
	nextID         int64
	receiveTimeout time.Duration
	endpoint       string
	log            zerolog.Logger
}

// NewSession returns a disconnected session.
func NewSession(opts Options) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = 300 * time.Second
	}
	return &Session{
		opts:           opts,
		receiveTimeout: opts.ReceiveTimeout,
		log:            logging.Logger(),
	}
}

// Connect tries each endpoint candidate in order and keeps the first
// connection whose handshake succeeds. Calling Connect on a connected
// session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	s.log = *logging.Ctx(ctx)

	candidates := s.opts.Endpoints()
	var lastErr error
	for _, endpoint := range candidates {
		conn, err := s.dial(ctx, endpoint)
		recordConnectAttempt(endpoint, err)
		if err != nil {
			lastErr = err
			s.log.Debug().Err(err).Str("endpoint", endpoint).Msg("Engine endpoint candidate failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s.conn = conn
		s.endpoint = endpoint
		metrics.EngineSessionsActive.Inc()
		s.log.Debug().Str("endpoint", endpoint).Msg("Engine session connected")
		return nil
	}
	return &ConnectionError{Endpoints: candidates, Err: lastErr}
}

// dial opens one candidate and reads the engine's greeting.
func (s *Session) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.opts.ConnectTimeout,
		TLSClientConfig:  s.opts.TLSConfig,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, s.opts.Header)
	if resp != nil && resp.Body != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			s.log.Debug().Err(cerr).Msg("failed to close handshake response body")
		}
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ConnectTimeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}
	if _, _, err := conn.ReadMessage(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("engine handshake: %w", err)
	}
	return conn, nil
}

// Close closes the connection. It is safe to call on a closed or never
// connected session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	metrics.EngineSessionsActive.Dec()

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// Connected reports whether the session holds an open connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Endpoint returns the URL of the connected candidate.
func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// ReceiveTimeout returns the current receive timeout.
func (s *Session) ReceiveTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receiveTimeout
}

// SetReceiveTimeout changes the receive timeout and returns a function
// restoring the previous value.
func (s *Session) SetReceiveTimeout(d time.Duration) (restore func()) {
	s.mu.Lock()
	prev := s.receiveTimeout
	if d > 0 {
		s.receiveTimeout = d
	}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.receiveTimeout = prev
		s.mu.Unlock()
	}
}

// Call sends one request and decodes the matching result into result
// (which may be nil). A nil params is sent as an empty array.
//
// A read error leaves the websocket unusable, so the session is closed
// before the error is returned.
func (s *Session) Call(ctx context.Context, handle int, method string, params, result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("%s: %w", method, ErrNotConnected)
	}
	if params == nil {
		params = []interface{}{}
	}

	s.nextID++
	id := s.nextID
	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Handle: handle, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	start := time.Now()
	deadline := start.Add(s.receiveTimeout)
	ctxBound := false
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline, ctxBound = d, true
	}

	conn := s.conn
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return s.transportError(method, start, fmt.Errorf("set write deadline: %w", err))
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return s.transportError(method, start, fmt.Errorf("write %s request: %w", method, err))
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return s.transportError(method, start, fmt.Errorf("set read deadline: %w", err))
	}

	// Cancellation only stops this side from waiting; the engine keeps
	// computing whatever was requested.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return s.transportError(method, start, fmt.Errorf("%s: %w", method, ctxErr))
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctxBound {
					return s.transportError(method, start, fmt.Errorf("%s: %w", method, context.DeadlineExceeded))
				}
				return s.transportError(method, start, fmt.Errorf("%s after %s: %w", method, time.Since(start).Round(time.Millisecond), ErrReceiveTimeout))
			}
			return s.transportError(method, start, fmt.Errorf("read %s response: %w", method, err))
		}

		var msg response
		if err := json.Unmarshal(data, &msg); err != nil {
			return s.transportError(method, start, fmt.Errorf("decode %s response: %w", method, err))
		}
		if !msg.terminal() {
			s.log.Trace().Str("notification", msg.Method).Msg("Skipping engine notification")
			continue
		}
		if msg.ID != nil && *msg.ID != id {
			s.log.Debug().Int64("want", id).Int64("got", *msg.ID).Msg("Skipping response to another request")
			continue
		}

		if msg.Error != nil {
			msg.Error.Method = method
			metrics.RecordEngineRequest(method, "engine_error", time.Since(start))
			return msg.Error
		}
		metrics.RecordEngineRequest(method, "ok", time.Since(start))
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (s *Session) transportError(method string, start time.Time, err error) error {
	metrics.RecordEngineRequest(method, "transport_error", time.Since(start))
	if cerr := s.closeLocked(); cerr != nil {
		s.log.Debug().Err(cerr).Msg("closing broken engine session")
	}
	return &TransportError{Method: method, Err: err}
}

func recordConnectAttempt(endpoint string, err error) {
	scheme, path := "unknown", ""
	if u, perr := url.Parse(endpoint); perr == nil {
		scheme, path = u.Scheme, u.Path
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.EngineConnectAttempts.WithLabelValues(scheme, path, outcome).Inc()
}
