// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"context"
	"reflect"
	"testing"

	"github.com/tomtom215/cubegate/internal/config"
)

func testKeys() []config.APIKeyConfig {
	return []config.APIKeyConfig{
		{
			Name: "reporting",
			Key:  "reporting-key",
			Apps: map[string][]string{
				"sales":   {"orders", "returns"},
				"finance": {"*"},
			},
		},
		{
			Name: "admin",
			Key:  "admin-key",
			Apps: map[string][]string{"*": {"*"}},
		},
		{
			Name: "empty",
			Key:  "empty-key",
			Apps: map[string][]string{"sales": {}},
		},
	}
}

func setupEnforcer(t *testing.T, cfg *EnforcerConfig) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(testKeys(), cfg)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func assertEnforce(t *testing.T, e *Enforcer, subject, app, table string, want bool) {
	t.Helper()
	got, err := e.Enforce(context.Background(), subject, app, table)
	if err != nil {
		t.Fatalf("Enforce(%s, %s, %s): %v", subject, app, table, err)
	}
	if got != want {
		t.Errorf("Enforce(%s, %s, %s) = %v, want %v", subject, app, table, got, want)
	}
}

func TestPolicyRules(t *testing.T) {
	rules := PolicyRules(testKeys())
	want := [][]string{
		{"reporting", "finance", "*", "read"},
		{"reporting", "sales", "orders", "read"},
		{"reporting", "sales", "returns", "read"},
		{"admin", "*", "*", "read"},
	}
	if !reflect.DeepEqual(rules, want) {
		t.Errorf("PolicyRules() = %v, want %v", rules, want)
	}
}

func TestEnforcer_Scopes(t *testing.T) {
	for _, cfg := range []*EnforcerConfig{nil, {CacheEnabled: false}} {
		e := setupEnforcer(t, cfg)

		tests := []struct {
			subject, app, table string
			want                bool
		}{
			{"reporting", "sales", "orders", true},
			{"reporting", "sales", "returns", true},
			{"reporting", "sales", "customers", false},
			{"reporting", "finance", "ledger", true},
			{"reporting", "hr", "staff", false},
			{"reporting", "sales", AnyTable, true},
			{"reporting", "hr", AnyTable, false},
			{"admin", "hr", "staff", true},
			{"admin", "anything", AnyTable, true},
			{"empty", "sales", "orders", false},
			{"unknown", "sales", "orders", false},
		}
		for _, tt := range tests {
			assertEnforce(t, e, tt.subject, tt.app, tt.table, tt.want)
		}
	}
}

func TestEnforcer_CachedDecisionsStable(t *testing.T) {
	e := setupEnforcer(t, DefaultEnforcerConfig())

	assertEnforce(t, e, "reporting", "sales", "orders", true)
	assertEnforce(t, e, "reporting", "sales", "orders", true)
	assertEnforce(t, e, "reporting", "hr", "staff", false)
	assertEnforce(t, e, "reporting", "hr", "staff", false)

	if n := e.cache.len(); n != 2 {
		t.Errorf("cache len = %d, want 2", n)
	}
}

func TestEnforcer_Reload(t *testing.T) {
	e := setupEnforcer(t, DefaultEnforcerConfig())
	assertEnforce(t, e, "reporting", "sales", "orders", true)

	keys := []config.APIKeyConfig{{
		Name: "reporting",
		Key:  "reporting-key",
		Apps: map[string][]string{"hr": {"staff"}},
	}}
	if err := e.Reload(keys); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	assertEnforce(t, e, "reporting", "sales", "orders", false)
	assertEnforce(t, e, "reporting", "hr", "staff", true)
	assertEnforce(t, e, "admin", "hr", "staff", false)
	if n := len(e.Policies()); n != 1 {
		t.Errorf("Policies() len = %d, want 1", n)
	}
}

func TestEnforcer_VisibleAppsAndTables(t *testing.T) {
	e := setupEnforcer(t, nil)
	ctx := context.Background()

	apps, err := e.VisibleApps(ctx, "reporting", []string{"finance", "hr", "sales"})
	if err != nil {
		t.Fatalf("VisibleApps: %v", err)
	}
	if !reflect.DeepEqual(apps, []string{"finance", "sales"}) {
		t.Errorf("VisibleApps = %v", apps)
	}

	tables, err := e.VisibleTables(ctx, "reporting", "sales", []string{"customers", "orders", "returns"})
	if err != nil {
		t.Fatalf("VisibleTables: %v", err)
	}
	if !reflect.DeepEqual(tables, []string{"orders", "returns"}) {
		t.Errorf("VisibleTables = %v", tables)
	}

	none, err := e.VisibleApps(ctx, "unknown", []string{"sales"})
	if err != nil {
		t.Fatalf("VisibleApps: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("unknown key sees %v", none)
	}
}

func TestEnforcer_PoliciesFor(t *testing.T) {
	e := setupEnforcer(t, nil)
	if n := len(e.PoliciesFor("reporting")); n != 3 {
		t.Errorf("PoliciesFor(reporting) len = %d, want 3", n)
	}
	if n := len(e.PoliciesFor("empty")); n != 0 {
		t.Errorf("PoliciesFor(empty) len = %d, want 0", n)
	}
}

func TestDefaultEnforcerConfig(t *testing.T) {
	cfg := DefaultEnforcerConfig()
	if !cfg.CacheEnabled {
		t.Error("CacheEnabled should default to true")
	}
	if cfg.CacheTTL <= 0 {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
}
