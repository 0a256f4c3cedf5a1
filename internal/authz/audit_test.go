// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/cubegate/internal/logging"
)

// syncBuffer guards a bytes.Buffer written by the audit goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(buf))
	t.Cleanup(func() { logging.SetLogger(prev) })
	return buf
}

func TestAuditLogger_LogDecision(t *testing.T) {
	buf := captureLogs(t)

	al := NewAuditLogger(nil)
	al.LogDecision(&AuditEvent{Subject: "reporting", App: "sales", Table: "orders", Action: ActionRead, Decision: true})
	al.LogDecision(&AuditEvent{Subject: "reporting", App: "hr", Table: "staff", Action: ActionRead, Decision: false, RequestID: "req-1"})
	al.Close()

	out := buf.String()
	for _, want := range []string{"Access allowed", "Access denied", `"app":"hr"`, `"request_id":"req-1"`, `"event_type":"authz_decision"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestAuditLogger_DeniedOnly(t *testing.T) {
	buf := captureLogs(t)

	al := NewAuditLogger(&AuditLoggerConfig{Enabled: true, LogAllowed: false})
	al.LogDecision(&AuditEvent{Subject: "a", App: "sales", Decision: true})
	al.LogDecision(&AuditEvent{Subject: "b", App: "sales", Decision: false})
	al.Close()

	out := buf.String()
	if strings.Contains(out, "Access allowed") {
		t.Error("allowed decision logged with LogAllowed=false")
	}
	if !strings.Contains(out, "Access denied") {
		t.Error("denied decision missing")
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	buf := captureLogs(t)

	al := NewAuditLogger(&AuditLoggerConfig{Enabled: false})
	al.LogDecision(&AuditEvent{Subject: "a", Decision: false})
	al.Close()

	if strings.Contains(buf.String(), "Access denied") {
		t.Error("disabled logger wrote an event")
	}
}

func TestAuditLogger_Nil(t *testing.T) {
	var al *AuditLogger
	al.LogDecision(&AuditEvent{})
	al.Close()
	if al.Dropped() != 0 {
		t.Error("nil logger reported drops")
	}
}

func TestAuditLogger_FillsIDAndTimestamp(t *testing.T) {
	captureLogs(t)
	al := NewAuditLogger(nil)
	defer al.Close()

	event := &AuditEvent{Subject: "a", Decision: true}
	al.LogDecision(event)
	if event.ID == "" {
		t.Error("ID not set")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestEnforcer_AuditsDecisions(t *testing.T) {
	buf := captureLogs(t)

	al := NewAuditLogger(nil)
	e, err := NewEnforcer(testKeys(), &EnforcerConfig{Audit: al})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	defer e.Close()

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	if _, err := e.Enforce(ctx, "reporting", "hr", "staff"); err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	al.Close()

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-42"`) || !strings.Contains(out, "Access denied") {
		t.Errorf("decision not audited:\n%s", out)
	}
}
