// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cubegate/internal/logging"
)

// AuditEvent is one access decision.
type AuditEvent struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
	Subject   string        `json:"subject"`
	App       string        `json:"app"`
	Table     string        `json:"table"`
	Action    string        `json:"action"`
	Decision  bool          `json:"decision"`
	Duration  time.Duration `json:"duration_ns"`
	CacheHit  bool          `json:"cache_hit"`
}

// AuditLoggerConfig configures the audit logger behavior.
type AuditLoggerConfig struct {
	Enabled bool

	// LogAllowed controls whether allowed decisions are logged. Denials
	// are always logged when the logger is enabled.
	LogAllowed bool

	// BufferSize is the size of the async log buffer. Events are dropped
	// when it is full.
	BufferSize int
}

// DefaultAuditLoggerConfig returns defaults for production.
func DefaultAuditLoggerConfig() *AuditLoggerConfig {
	return &AuditLoggerConfig{
		Enabled:    true,
		LogAllowed: true,
		BufferSize: 1000,
	}
}

// AuditLogger writes access decisions to the log asynchronously.
type AuditLogger struct {
	config   *AuditLoggerConfig
	events   chan *AuditEvent
	dropped  atomic.Int64
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditLoggerConfig) *AuditLogger {
	if config == nil {
		config = DefaultAuditLoggerConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	al := &AuditLogger{
		config:   config,
		events:   make(chan *AuditEvent, config.BufferSize),
		stopChan: make(chan struct{}),
	}
	if config.Enabled {
		al.wg.Add(1)
		go al.processEvents()
	}
	return al
}

// LogDecision queues event. It never blocks; a nil logger is a no-op.
func (al *AuditLogger) LogDecision(event *AuditEvent) {
	if al == nil || !al.config.Enabled {
		return
	}
	if event.Decision && !al.config.LogAllowed {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case al.events <- event:
	default:
		al.dropped.Add(1)
		logging.Warn().
			Str("subject", event.Subject).
			Str("app", event.App).
			Msg("Audit log buffer full, event dropped")
	}
}

func (al *AuditLogger) processEvents() {
	defer al.wg.Done()

	for {
		select {
		case <-al.stopChan:
			al.drainEvents()
			return
		case event := <-al.events:
			al.writeEvent(event)
		}
	}
}

func (al *AuditLogger) drainEvents() {
	for {
		select {
		case event := <-al.events:
			al.writeEvent(event)
		default:
			return
		}
	}
}

func (al *AuditLogger) writeEvent(event *AuditEvent) {
	logEvent := logging.Info()
	msg := "Access allowed"
	if !event.Decision {
		logEvent = logging.Warn()
		msg = "Access denied"
	}

	logEvent = logEvent.
		Str("event_type", "authz_decision").
		Str("audit_id", event.ID).
		Time("audit_timestamp", event.Timestamp).
		Str("subject", event.Subject).
		Str("app", event.App).
		Str("table", event.Table).
		Str("action", event.Action).
		Bool("decision", event.Decision).
		Dur("duration", event.Duration).
		Bool("cache_hit", event.CacheHit)
	if event.RequestID != "" {
		logEvent = logEvent.Str("request_id", event.RequestID)
	}
	logEvent.Msg(msg)
}

// Close stops the logger after flushing queued events.
func (al *AuditLogger) Close() {
	if al == nil {
		return
	}
	al.stopOnce.Do(func() {
		close(al.stopChan)
	})
	al.wg.Wait()
}

// Dropped returns how many events were dropped because the buffer was full.
func (al *AuditLogger) Dropped() int64 {
	if al == nil {
		return 0
	}
	return al.dropped.Load()
}
