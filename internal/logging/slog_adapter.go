// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler routes slog records into the zerolog logger. The supervisor
// tree reports service restarts through slog, so this keeps a single
// output stream.
type SlogHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	group  string
}

// NewSlogHandler returns a handler bound to the current global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogLogger returns an *slog.Logger backed by zerolog.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler())
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= slogToZerologLevel(level)
}

// Handle implements slog.Handler.
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))
	for _, a := range h.attrs {
		event = addAttr(event, h.group, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		event = addAttr(event, h.group, a)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &SlogHandler{logger: h.logger, attrs: merged, group: h.group}
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &SlogHandler{logger: h.logger, attrs: h.attrs, group: group}
}

func addAttr(event *zerolog.Event, group string, a slog.Attr) *zerolog.Event {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return event.Str(key, v.String())
	case slog.KindInt64:
		return event.Int64(key, v.Int64())
	case slog.KindUint64:
		return event.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, v.Float64())
	case slog.KindBool:
		return event.Bool(key, v.Bool())
	case slog.KindDuration:
		return event.Dur(key, v.Duration())
	case slog.KindTime:
		return event.Time(key, v.Time())
	default:
		return event.Interface(key, v.Any())
	}
}

func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
