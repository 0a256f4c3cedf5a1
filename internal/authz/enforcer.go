// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

// ActionRead is the only action the gateway grants.
const ActionRead = "read"

// AnyTable asks whether a key may read at least one table of an app.
const AnyTable = "*"

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// CacheEnabled enables decision caching.
	CacheEnabled bool

	// CacheTTL is how long to cache decisions.
	CacheTTL time.Duration

	// Audit receives every decision. Nil disables audit logging.
	Audit *AuditLogger
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
	}
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *ttlCache[bool]
}

// NewEnforcer builds an enforcer whose policies are derived from keys.
func NewEnforcer(keys []config.APIKeyConfig, cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultEnforcerConfig()
	}

	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	e := &Enforcer{config: cfg, enforcer: enforcer}
	if cfg.CacheEnabled {
		e.cache = newTTLCache[bool](cfg.CacheTTL)
	}
	if err := e.loadKeys(keys); err != nil {
		return nil, err
	}
	return e, nil
}

// PolicyRules converts key grants into (key, app, table, action) rules.
func PolicyRules(keys []config.APIKeyConfig) [][]string {
	var rules [][]string
	for _, key := range keys {
		apps := make([]string, 0, len(key.Apps))
		for app := range key.Apps {
			apps = append(apps, app)
		}
		sort.Strings(apps)

		for _, app := range apps {
			tables := key.Apps[app]
			if len(tables) == 0 {
				logging.Warn().
					Str("key", key.Name).
					Str("app", app).
					Msg("API key grants an app without tables; use [\"*\"] for all tables")
				continue
			}
			for _, table := range tables {
				rules = append(rules, []string{key.Name, app, table, ActionRead})
			}
		}
	}
	return rules
}

func (e *Enforcer) loadKeys(keys []config.APIKeyConfig) error {
	for _, rule := range PolicyRules(keys) {
		if _, err := e.enforcer.AddPolicy(rule[0], rule[1], rule[2], rule[3]); err != nil {
			return fmt.Errorf("failed to add policy %v: %w", rule, err)
		}
	}
	return nil
}

// Reload replaces all policies with those derived from keys.
func (e *Enforcer) Reload(keys []config.APIKeyConfig) error {
	e.enforcer.ClearPolicy()
	if err := e.loadKeys(keys); err != nil {
		return err
	}
	if e.cache != nil {
		e.cache.clear()
	}
	logging.Info().Int("rules", len(e.Policies())).Msg("Access policies reloaded")
	return nil
}

// Enforce reports whether subject may read table of app. Use AnyTable to
// ask about the app as a whole.
func (e *Enforcer) Enforce(ctx context.Context, subject, app, table string) (bool, error) {
	start := time.Now()
	key := decisionKey(subject, app, table, ActionRead)

	if e.cache != nil {
		if allowed, ok := e.cache.get(key); ok {
			e.record(ctx, subject, app, table, allowed, time.Since(start), true)
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, app, table, ActionRead)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}

	if e.cache != nil {
		e.cache.set(key, allowed)
	}
	e.record(ctx, subject, app, table, allowed, time.Since(start), false)
	return allowed, nil
}

func (e *Enforcer) record(ctx context.Context, subject, app, table string, allowed bool, d time.Duration, cacheHit bool) {
	metrics.RecordAuthzDecision(allowed)
	e.config.Audit.LogDecision(&AuditEvent{
		RequestID: logging.RequestIDFromContext(ctx),
		Subject:   subject,
		App:       app,
		Table:     table,
		Action:    ActionRead,
		Decision:  allowed,
		Duration:  d,
		CacheHit:  cacheHit,
	})
}

// VisibleApps filters apps down to those subject may read something in.
func (e *Enforcer) VisibleApps(ctx context.Context, subject string, apps []string) ([]string, error) {
	visible := make([]string, 0, len(apps))
	for _, app := range apps {
		ok, err := e.Enforce(ctx, subject, app, AnyTable)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, app)
		}
	}
	return visible, nil
}

// VisibleTables filters tables of app down to those subject may read.
func (e *Enforcer) VisibleTables(ctx context.Context, subject, app string, tables []string) ([]string, error) {
	visible := make([]string, 0, len(tables))
	for _, table := range tables {
		ok, err := e.Enforce(ctx, subject, app, table)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, table)
		}
	}
	return visible, nil
}

// Policies returns all policy rules.
func (e *Enforcer) Policies() [][]string {
	//nolint:errcheck // GetPolicy only fails if enforcer is nil, which is a programming error
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// PoliciesFor returns the rules granted to subject.
func (e *Enforcer) PoliciesFor(subject string) [][]string {
	//nolint:errcheck // GetFilteredPolicy only fails if enforcer is nil, which is a programming error
	policies, _ := e.enforcer.GetFilteredPolicy(0, subject)
	return policies
}

// Close stops the decision cache.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}
