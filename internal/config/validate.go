// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateApps(); err != nil {
		return err
	}
	return c.validateAPIKeys()
}

func (c *Config) validateEngine() error {
	if c.Engine.Host == "" {
		return fmt.Errorf("engine.host (QLIK_SENSE_HOST) is required")
	}
	if c.Engine.Port < 1 || c.Engine.Port > 65535 {
		return fmt.Errorf("engine.port must be between 1 and 65535, got %d", c.Engine.Port)
	}
	if c.Engine.ReceiveTimeout <= 0 {
		return fmt.Errorf("engine.receive_timeout must be positive")
	}
	if c.Engine.ConnectTimeout <= 0 {
		return fmt.Errorf("engine.connect_timeout must be positive")
	}
	if (c.Engine.CertPath == "") != (c.Engine.KeyPath == "") {
		return fmt.Errorf("engine.cert_path and engine.key_path must be set together")
	}
	if c.Engine.BreakerFailureRatio <= 0 || c.Engine.BreakerFailureRatio > 1 {
		return fmt.Errorf("engine.breaker_failure_ratio must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with '/', got %q", c.Server.APIPrefix)
	}
	if c.Security.RateLimitEnabled && c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_requests must be at least 1")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	e := c.Extraction
	if e.CellBudget < 1 {
		return fmt.Errorf("extraction.cell_budget must be at least 1")
	}
	if e.MaxRows < 1 {
		return fmt.Errorf("extraction.max_rows must be at least 1")
	}
	if e.MaxConcurrentSessions < 1 {
		return fmt.Errorf("extraction.max_concurrent_sessions must be at least 1")
	}
	if e.PivotTimeout <= 0 || e.RequestTimeout <= 0 {
		return fmt.Errorf("extraction timeouts must be positive")
	}
	return nil
}

func (c *Config) validateApps() error {
	for name, app := range c.Apps {
		if app.DocID == "" {
			return fmt.Errorf("apps.%s.doc_id is required", name)
		}
		for tname, table := range app.Tables {
			if table.ObjectID == "" {
				return fmt.Errorf("apps.%s.tables.%s.object_id is required", name, tname)
			}
		}
		if app.DefaultTable != "" {
			if _, ok := app.Tables[app.DefaultTable]; !ok {
				return fmt.Errorf("apps.%s.default_table %q is not a configured table", name, app.DefaultTable)
			}
		}
	}
	return nil
}

func (c *Config) validateAPIKeys() error {
	seen := make(map[string]bool, len(c.APIKeys))
	for i, key := range c.APIKeys {
		if key.Name == "" {
			return fmt.Errorf("api_keys[%d].name is required", i)
		}
		if seen[key.Name] {
			return fmt.Errorf("api_keys[%d].name %q is duplicated", i, key.Name)
		}
		seen[key.Name] = true
		if key.Key == "" && key.KeyHash == "" {
			return fmt.Errorf("api_keys[%d] (%s) needs key or key_hash", i, key.Name)
		}
		for app := range key.Apps {
			if app == "*" {
				continue
			}
			if _, ok := c.Apps[app]; !ok {
				return fmt.Errorf("api_keys[%d] (%s) grants unknown app %q", i, key.Name, app)
			}
		}
	}
	return nil
}
