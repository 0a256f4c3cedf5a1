// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/engine/enginetest"
)

func TestOptions_Endpoints(t *testing.T) {
	tests := []struct {
		name    string
		retries int
		want    []string
	}{
		{"zero clamps to one", 0, []string{"wss://qlik:4747/app/engineData"}},
		{"default two", 2, []string{"wss://qlik:4747/app/engineData", "wss://qlik:4747/app"}},
		{"all four", 4, []string{
			"wss://qlik:4747/app/engineData", "wss://qlik:4747/app",
			"ws://qlik:4747/app/engineData", "ws://qlik:4747/app",
		}},
		{"above four clamps", 9, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Options{Host: "qlik", Port: 4747, Retries: tt.retries}.Endpoints()
			if tt.want == nil {
				if len(got) != 4 {
					t.Fatalf("expected 4 endpoints, got %d", len(got))
				}
				return
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Endpoints() = %v, want %v", got, tt.want)
			}
		})
	}
}

func connect(t *testing.T, srv *enginetest.Server) *engine.Session {
	t.Helper()
	sess := engine.NewSession(srv.Options())
	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestSession_ConnectFallsBackToPlainWebsocket(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})
	sess := connect(t, srv)

	if !strings.HasPrefix(sess.Endpoint(), "ws://") || !strings.HasSuffix(sess.Endpoint(), "/app/engineData") {
		t.Errorf("Endpoint() = %q, want ws://.../app/engineData", sess.Endpoint())
	}
	if !sess.Connected() {
		t.Error("expected session to be connected")
	}
}

func TestSession_ConnectTriesSecondPath(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{Paths: []string{"/app"}})
	sess := connect(t, srv)

	if !strings.HasSuffix(sess.Endpoint(), "/app") {
		t.Errorf("Endpoint() = %q, want .../app", sess.Endpoint())
	}
}

func TestSession_ConnectExhaustsCandidates(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})
	opts := srv.Options()
	opts.Retries = 2 // wss only, the test server speaks plain ws

	err := engine.NewSession(opts).Connect(context.Background())
	var cerr *engine.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
	if len(cerr.Endpoints) != 2 {
		t.Errorf("expected 2 endpoints tried, got %d", len(cerr.Endpoints))
	}
	if cerr.Err == nil {
		t.Error("expected last error to be wrapped")
	}
}

func TestSession_CallBeforeConnect(t *testing.T) {
	sess := engine.NewSession(engine.Options{Host: "localhost", Port: 1})
	err := sess.Call(context.Background(), -1, "EngineVersion", nil, nil)
	if !errors.Is(err, engine.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if !engine.IsTransportError(err) {
		t.Error("expected ErrNotConnected to count as a transport error")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})
	sess := connect(t, srv)

	for i := 0; i < 3; i++ {
		if err := sess.Close(); err != nil && i > 0 {
			t.Fatalf("Close() #%d error = %v", i, err)
		}
	}
	if sess.Connected() {
		t.Error("expected session to be disconnected")
	}
	if err := sess.Call(context.Background(), -1, "EngineVersion", nil, nil); !errors.Is(err, engine.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after Close, got %v", err)
	}
}

func TestSession_CallSkipsNotificationsAndStrayResponses(t *testing.T) {
	e := enginetest.New()
	e.Version = "12.1477.0"
	srv := enginetest.Serve(t, e, enginetest.ServeOptions{Notify: true, Stray: true})
	sess := connect(t, srv)

	for i := 0; i < 3; i++ {
		v, err := engine.NewGlobal(sess).EngineVersion(context.Background())
		if err != nil {
			t.Fatalf("EngineVersion() error = %v", err)
		}
		if v != "12.1477.0" {
			t.Errorf("EngineVersion() = %q", v)
		}
	}
}

func TestSession_RequestIDsIncrease(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{})
	sess := connect(t, srv)

	var raw json.RawMessage
	for i := 0; i < 3; i++ {
		if err := sess.Call(context.Background(), -1, "EngineVersion", nil, &raw); err != nil {
			t.Fatalf("Call() error = %v", err)
		}
	}
	// Stray responses use id+1000; if ids did not advance, a later call
	// would have matched an earlier stray id.
	if !sess.Connected() {
		t.Error("expected session to stay connected")
	}
}

func TestSession_EngineErrorPayload(t *testing.T) {
	e := enginetest.New()
	srv := enginetest.Serve(t, e, enginetest.ServeOptions{})
	sess := connect(t, srv)

	_, err := engine.NewGlobal(sess).OpenDoc(context.Background(), "missing.qvf", false)
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *EngineError, got %v", err)
	}
	if ee.Code != 1003 || ee.Method != "OpenDoc" || ee.Parameter != "missing.qvf" {
		t.Errorf("unexpected engine error %+v", ee)
	}
	if ee.Kind() != engine.KindNotFound {
		t.Errorf("Kind() = %v, want not_found", ee.Kind())
	}
	if !sess.Connected() {
		t.Error("an engine error must not close the session")
	}
}

func TestSession_ReceiveTimeoutClosesSession(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{Delay: 500 * time.Millisecond})
	sess := connect(t, srv)
	restore := sess.SetReceiveTimeout(50 * time.Millisecond)
	defer restore()

	err := sess.Call(context.Background(), -1, "EngineVersion", nil, nil)
	if !errors.Is(err, engine.ErrReceiveTimeout) {
		t.Fatalf("expected ErrReceiveTimeout, got %v", err)
	}
	if !engine.IsTransportError(err) {
		t.Error("expected a transport error")
	}
	if sess.Connected() {
		t.Error("expected session to be closed after a receive timeout")
	}
}

func TestSession_ContextCancelStopsWaiting(t *testing.T) {
	srv := enginetest.Serve(t, enginetest.New(), enginetest.ServeOptions{Delay: time.Second})
	sess := connect(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sess.Call(ctx, -1, "EngineVersion", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("Call did not return promptly after the context expired")
	}
}

func TestSession_SetReceiveTimeoutRestore(t *testing.T) {
	sess := engine.NewSession(engine.Options{ReceiveTimeout: 10 * time.Second})
	restore := sess.SetReceiveTimeout(time.Minute)
	if got := sess.ReceiveTimeout(); got != time.Minute {
		t.Fatalf("ReceiveTimeout() = %v, want 1m", got)
	}
	restore()
	if got := sess.ReceiveTimeout(); got != 10*time.Second {
		t.Errorf("ReceiveTimeout() after restore = %v, want 10s", got)
	}
}
