// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package config

import (
	"sort"
	"time"
)

// Config holds all gateway configuration.
type Config struct {
	Engine     EngineConfig         `koanf:"engine"`
	Server     ServerConfig         `koanf:"server"`
	Security   SecurityConfig       `koanf:"security"`
	Extraction ExtractionConfig     `koanf:"extraction"`
	Cache      CacheConfig          `koanf:"cache"`
	Logging    LoggingConfig        `koanf:"logging"`
	Apps       map[string]AppConfig `koanf:"apps"`
	APIKeys    []APIKeyConfig       `koanf:"api_keys"`
}

// EngineConfig describes how to reach the engine's websocket endpoint.
type EngineConfig struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port"`
	UserDirectory string `koanf:"user_directory"`
	UserID        string `koanf:"user_id"`

	// Client certificate material. Missing files disable client auth.
	CertPath     string `koanf:"cert_path"`
	KeyPath      string `koanf:"key_path"`
	RootCertPath string `koanf:"root_cert_path"`
	VerifySSL    bool   `koanf:"verify_ssl"`

	// ConnectTimeout bounds the websocket handshake for each endpoint candidate.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	// ReceiveTimeout is the base read deadline for one JSON-RPC response.
	ReceiveTimeout time.Duration `koanf:"receive_timeout"`

	// Retries is the number of endpoint candidates tried on connect, clamped to [1, 4].
	Retries int `koanf:"retries"`

	// NoData opens documents without loading data (OpenDoc qNoData).
	NoData bool `koanf:"no_data"`

	// SessionsPerSecond paces new websocket sessions; Burst is the limiter bucket size.
	SessionsPerSecond float64 `koanf:"sessions_per_second"`
	SessionBurst      int     `koanf:"session_burst"`

	// Breaker trips after BreakerMinRequests with at least BreakerFailureRatio failing.
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerOpenTimeout  time.Duration `koanf:"breaker_open_timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	APIPrefix       string        `koanf:"api_prefix"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// ReadyProbeEngine makes /health/ready open a session and report the
	// engine version in addition to the breaker state.
	ReadyProbeEngine bool `koanf:"ready_probe_engine"`
}

// SecurityConfig holds API key, CORS and rate limit settings.
type SecurityConfig struct {
	APIKeyHeader     string        `koanf:"api_key_header"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	RateLimitEnabled bool          `koanf:"rate_limit_enabled"`
	RateLimitReqs    int           `koanf:"rate_limit_requests"`
	RateLimitWindow  time.Duration `koanf:"rate_limit_window"`
}

// ExtractionConfig bounds hypercube reads.
type ExtractionConfig struct {
	// CellBudget is the maximum rows*columns requested in one data page.
	CellBudget int `koanf:"cell_budget"`

	// MaxRows caps the rows requested in one data page.
	MaxRows int `koanf:"max_rows"`

	// PerDimensionTimeout extends the receive deadline for wide session cubes.
	PerDimensionTimeout time.Duration `koanf:"per_dimension_timeout"`

	// PivotTimeout is the wall-clock budget of a pivot read.
	PivotTimeout time.Duration `koanf:"pivot_timeout"`

	// RequestTimeout is the wall-clock budget of one extraction request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxConcurrentSessions limits simultaneous engine sessions.
	MaxConcurrentSessions int `koanf:"max_concurrent_sessions"`
}

// CacheConfig configures the page result cache.
type CacheConfig struct {
	Enabled bool `koanf:"enabled"`
	// Path is the badger directory. Empty runs the cache in memory.
	Path string        `koanf:"path"`
	TTL  time.Duration `koanf:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AppConfig maps a logical application name to an engine document.
type AppConfig struct {
	DocID        string                 `koanf:"doc_id"`
	DefaultTable string                 `koanf:"default_table"`
	Tables       map[string]TableConfig `koanf:"tables"`
}

// TableConfig maps a logical table to a visual object in the document.
type TableConfig struct {
	ObjectID   string `koanf:"object_id"`
	BookmarkID string `koanf:"bookmark_id"`

	// Filters maps query parameter names to engine field names.
	Filters map[string]string `koanf:"filters"`

	// YearMonthField enables the yearmonth query parameter and names the
	// field it selects on.
	YearMonthField string `koanf:"yearmonth_field"`
}

// APIKeyConfig grants one key access to apps and tables. Apps maps an app
// name (or "*") to table names (or "*").
type APIKeyConfig struct {
	Name    string              `koanf:"name"`
	Key     string              `koanf:"key"`
	KeyHash string              `koanf:"key_hash"`
	Apps    map[string][]string `koanf:"apps"`
}

// App returns the configuration for a logical application.
func (c *Config) App(name string) (AppConfig, bool) {
	app, ok := c.Apps[name]
	return app, ok
}

// Table returns the configuration for an (app, table) pair.
func (c *Config) Table(app, table string) (TableConfig, bool) {
	a, ok := c.Apps[app]
	if !ok {
		return TableConfig{}, false
	}
	t, ok := a.Tables[table]
	return t, ok
}

// AppNames returns the configured application names, sorted.
func (c *Config) AppNames() []string {
	names := make([]string, 0, len(c.Apps))
	for name := range c.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableNames returns the table names of an application, sorted.
func (a AppConfig) TableNames() []string {
	names := make([]string, 0, len(a.Tables))
	for name := range a.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
