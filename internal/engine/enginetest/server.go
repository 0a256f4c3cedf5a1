// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package enginetest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cubegate/internal/engine"
)

// ServeOptions change how Serve behaves on the wire.
type ServeOptions struct {
	// Paths accepted for the websocket upgrade. Defaults to
	// /app/engineData and /app.
	Paths []string

	// Notify sends a notification before every response.
	Notify bool

	// Stray sends a response to an unrelated request id before every
	// response.
	Stray bool

	// Delay is applied before every response.
	Delay time.Duration
}

// Server is an Engine served over websocket.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	headers []http.Header
	conns   int
}

// Serve starts a websocket server answering with e. The server is closed
// when the test ends.
func Serve(t testing.TB, e *Engine, opts ServeOptions) *Server {
	t.Helper()
	if len(opts.Paths) == 0 {
		opts.Paths = []string{"/app/engineData", "/app"}
	}

	s := &Server{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	for _, p := range opts.Paths {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != p {
				http.NotFound(w, r)
				return
			}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.headers = append(s.headers, r.Header.Clone())
			s.conns++
			s.mu.Unlock()
			e.resetSession()
			s.session(conn, e, opts)
		})
	}
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) session(conn *websocket.Conn, e *Engine, opts ServeOptions) {
	defer conn.Close()

	greeting := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "OnConnected",
		"params":  map[string]string{"qSessionState": "SESSION_CREATED"},
	}
	if err := conn.WriteJSON(greeting); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     int64           `json:"id"`
			Handle int             `json:"handle"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return
		}

		res, delay, eerr := e.dispatch(req.Handle, req.Method, req.Params)
		if d := delay + opts.Delay; d > 0 {
			time.Sleep(d)
		}
		if opts.Notify {
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "method": "OnEngineWebsocketEvent", "params": map[string]string{}})
		}
		if opts.Stray {
			_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID + 1000, "result": map[string]string{}})
		}

		msg := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if eerr != nil {
			msg["error"] = eerr
		} else {
			if res == nil {
				res = map[string]interface{}{}
			}
			msg["result"] = res
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// Host returns the server's host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Listener.Addr().String())
	return host
}

// Port returns the server's port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Options returns session options that reach this server through the
// plain ws:// candidates.
func (s *Server) Options() engine.Options {
	return engine.Options{
		Host:           s.Host(),
		Port:           s.Port(),
		ConnectTimeout: 2 * time.Second,
		ReceiveTimeout: 5 * time.Second,
		Retries:        4,
	}
}

// Headers returns the handshake headers of every accepted connection.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// Connections returns the number of accepted websocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}
