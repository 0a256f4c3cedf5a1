// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cubegate/config.yaml",
	"/etc/cubegate/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Port:                4747,
			VerifySSL:           true,
			ConnectTimeout:      30 * time.Second,
			ReceiveTimeout:      300 * time.Second,
			Retries:             2,
			NoData:              false,
			SessionsPerSecond:   5,
			SessionBurst:        10,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			BreakerOpenTimeout:  2 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			APIPrefix:       "/api/v1",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			APIKeyHeader:     "X-API-Key",
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:8000"},
			RateLimitEnabled: false,
			RateLimitReqs:    100,
			RateLimitWindow:  time.Minute,
		},
		Extraction: ExtractionConfig{
			CellBudget:            10000,
			MaxRows:               10000,
			PerDimensionTimeout:   20 * time.Second,
			PivotTimeout:          2 * time.Minute,
			RequestTimeout:        5 * time.Minute,
			MaxConcurrentSessions: 8,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// envMappings maps lower-cased environment variable names to koanf paths.
// The QLIK_* names match the variables used by earlier deployments.
var envMappings = map[string]string{
	"qlik_sense_host":          "engine.host",
	"qlik_engine_port":         "engine.port",
	"qlik_user_directory":      "engine.user_directory",
	"qlik_user_id":             "engine.user_id",
	"qlik_cert_path":           "engine.cert_path",
	"qlik_key_path":            "engine.key_path",
	"qlik_root_cert_path":      "engine.root_cert_path",
	"qlik_verify_ssl":          "engine.verify_ssl",
	"qlik_connection_timeout":  "engine.connect_timeout",
	"qlik_ws_timeout":          "engine.receive_timeout",
	"qlik_ws_retries":          "engine.retries",
	"qlik_open_no_data":        "engine.no_data",
	"qlik_sessions_per_second": "engine.sessions_per_second",

	"host":               "server.host",
	"port":               "server.port",
	"api_v1_prefix":      "server.api_prefix",
	"shutdown_timeout":   "server.shutdown_timeout",
	"ready_probe_engine": "server.ready_probe_engine",

	"api_key_header":      "security.api_key_header",
	"allowed_origins":     "security.cors_origins",
	"rate_limit_enabled":  "security.rate_limit_enabled",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_period":   "security.rate_limit_window",

	"extraction_cell_budget":     "extraction.cell_budget",
	"extraction_max_rows":        "extraction.max_rows",
	"extraction_pivot_timeout":   "extraction.pivot_timeout",
	"extraction_request_timeout": "extraction.request_timeout",
	"max_concurrent_sessions":    "extraction.max_concurrent_sessions",

	"cache_enabled": "cache.enabled",
	"cache_path":    "cache.path",
	"cache_ttl":     "cache.ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Handled after loading, see applyLegacyMappings.
	"api_key":                     "legacy.api_key",
	"app_mappings_json":           "legacy.app_mappings_json",
	"default_table_mappings_json": "legacy.default_table_mappings_json",
}

// durationPaths accept a bare number of seconds from the environment.
var durationPaths = map[string]bool{
	"engine.connect_timeout":     true,
	"engine.receive_timeout":     true,
	"server.shutdown_timeout":    true,
	"security.rate_limit_window": true,
	"extraction.pivot_timeout":   true,
	"extraction.request_timeout": true,
	"cache.ttl":                  true,
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// envTransformFunc maps an environment variable to a koanf path and value.
// Unknown variables return an empty key and are ignored.
func envTransformFunc(key, value string) (string, interface{}) {
	path, ok := envMappings[strings.ToLower(key)]
	if !ok {
		return "", nil
	}
	if durationPaths[path] {
		if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return path, (time.Duration(secs) * time.Second).String()
		}
	}
	return path, value
}

// LoadWithKoanf loads configuration from defaults, file and environment.
func LoadWithKoanf() (*Config, error) {
	return load(nil)
}

// LoadWithFlags is LoadWithKoanf plus explicitly set command line flags.
// Flag names are koanf paths with dashes for underscores, for example
// --engine.host or --engine.user-id.
func LoadWithFlags(flags *pflag.FlagSet) (*Config, error) {
	return load(flags)
}

func load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := applyLegacyMappings(k, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// applyLegacyMappings folds the flat JSON env variables of older
// deployments into the structured config:
//
//	APP_MAPPINGS_JSON={"sales":"<doc id>"}
//	DEFAULT_TABLE_MAPPINGS_JSON={"sales":"<object id>"}
//	API_KEY=<key with access to everything>
//
// A default table mapped this way is registered as table "default".
func applyLegacyMappings(k *koanf.Koanf, cfg *Config) error {
	if raw := k.String("legacy.app_mappings_json"); raw != "" {
		var apps map[string]string
		if err := json.Unmarshal([]byte(raw), &apps); err != nil {
			return fmt.Errorf("APP_MAPPINGS_JSON is invalid: %w", err)
		}
		if cfg.Apps == nil {
			cfg.Apps = make(map[string]AppConfig, len(apps))
		}
		for name, docID := range apps {
			app := cfg.Apps[name]
			app.DocID = docID
			cfg.Apps[name] = app
		}
	}

	if raw := k.String("legacy.default_table_mappings_json"); raw != "" {
		var tables map[string]string
		if err := json.Unmarshal([]byte(raw), &tables); err != nil {
			return fmt.Errorf("DEFAULT_TABLE_MAPPINGS_JSON is invalid: %w", err)
		}
		for name, objectID := range tables {
			app, ok := cfg.Apps[name]
			if !ok {
				return fmt.Errorf("DEFAULT_TABLE_MAPPINGS_JSON references unknown app %q", name)
			}
			if app.Tables == nil {
				app.Tables = make(map[string]TableConfig)
			}
			if _, exists := app.Tables["default"]; !exists {
				app.Tables["default"] = TableConfig{ObjectID: objectID}
			}
			if app.DefaultTable == "" {
				app.DefaultTable = "default"
			}
			cfg.Apps[name] = app
		}
	}

	if key := k.String("legacy.api_key"); key != "" {
		cfg.APIKeys = append(cfg.APIKeys, APIKeyConfig{
			Name: "default",
			Key:  key,
			Apps: map[string][]string{"*": {"*"}},
		})
	}
	return nil
}

// ConfigFile returns the path of the file the loaders read, or "" when
// no config file exists.
func ConfigFile() string {
	return findConfigFile()
}

// WatchConfigFile calls callback whenever the file at path changes. Watch
// errors are passed to callback so the caller can log them. The returned
// stop function ends the watch.
func WatchConfigFile(path string, callback func(err error)) (stop func() error, err error) {
	p := file.Provider(path)
	if err := p.Watch(func(_ interface{}, err error) {
		callback(err)
	}); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	return p.Unwatch, nil
}
