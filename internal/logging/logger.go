// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config selects the output of the gateway logger. The zero value logs
// JSON at info level to stderr.
type Config struct {
	Level     string // trace, debug, info, warn, error or off
	Format    string // json or console
	Caller    bool
	Timestamp bool
	Output    io.Writer
}

// current is swapped whole so that extraction workers logging in the
// background never see a half-built logger.
var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // config loading logs before main calls Init
func init() {
	Init(Config{Timestamp: true})
}

// Init replaces the global logger. Loggers already derived through Ctx or
// Logger keep writing to the previous output.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	l := newLogger(cfg)
	current.Store(&l)
}

func newLogger(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	c := zerolog.New(out).With()
	if cfg.Timestamp {
		c = c.Timestamp()
	}
	if cfg.Caller {
		c = c.Caller()
	}
	return c.Logger()
}

var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"off":      zerolog.Disabled,
	"disabled": zerolog.Disabled,
}

// ParseLevel maps LOG_LEVEL values to zerolog levels. Unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	return *current.Load()
}

// SetLogger installs l as the global logger. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	current.Store(&l)
}

func Debug() *zerolog.Event { return current.Load().Debug() }
func Info() *zerolog.Event  { return current.Load().Info() }
func Warn() *zerolog.Event  { return current.Load().Warn() }
func Error() *zerolog.Event { return current.Load().Error() }

// Fatal exits the process after the event is sent.
func Fatal() *zerolog.Event { return current.Load().Fatal() }

// NewTestLogger returns a debug-level JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
