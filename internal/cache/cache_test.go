// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package cache

import (
	"testing"
	"time"

	"github.com/tomtom215/cubegate/internal/config"
)

func newStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := Open(config.CacheConfig{Enabled: true, TTL: ttl})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreBasicOperations(t *testing.T) {
	s := newStore(t, time.Minute)

	if err := s.Set("key1", []byte(`"value1"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, exists := s.Get("key1")
	if !exists {
		t.Fatal("Expected key1 to exist")
	}
	if string(value) != `"value1"` {
		t.Errorf("Expected \"value1\", got %s", value)
	}

	if _, exists := s.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestStoreRejectsNonJSON(t *testing.T) {
	s := newStore(t, time.Minute)
	if err := s.Set("key", []byte("not json")); err == nil {
		t.Error("Expected error for non-JSON value")
	}
}

func TestStoreExpiration(t *testing.T) {
	s := newStore(t, 100*time.Millisecond)

	if err := s.Set("key1", []byte(`1`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, exists := s.Get("key1"); !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(150 * time.Millisecond)

	if _, exists := s.Get("key1"); exists {
		t.Error("Expected key1 to be expired")
	}
}

func TestStoreSetWithTTL(t *testing.T) {
	s := newStore(t, time.Hour)

	if err := s.SetWithTTL("short", []byte(`1`), 50*time.Millisecond); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if err := s.Set("long", []byte(`2`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, exists := s.Get("short"); exists {
		t.Error("Expected short to be expired")
	}
	if _, exists := s.Get("long"); !exists {
		t.Error("Expected long to still exist")
	}
}

func TestStoreDeleteAndClear(t *testing.T) {
	s := newStore(t, time.Minute)

	for _, key := range []string{"key1", "key2", "key3"} {
		if err := s.Set(key, []byte(`true`)); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}

	s.Delete("key1")
	if _, exists := s.Get("key1"); exists {
		t.Error("Expected key1 to be deleted")
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, key := range []string{"key2", "key3"} {
		if _, exists := s.Get(key); exists {
			t.Errorf("Expected %s to be cleared", key)
		}
	}
}

func TestStoreJSONHelpers(t *testing.T) {
	s := newStore(t, time.Minute)

	type page struct {
		Rows  []map[string]interface{} `json:"rows"`
		Total int                      `json:"total"`
	}
	in := page{Rows: []map[string]interface{}{{"Region": "North"}}, Total: 1}
	if err := s.SetJSON("page:1", in); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var out page
	if !s.GetJSON("page:1", &out) {
		t.Fatal("Expected page:1 to exist")
	}
	if out.Total != 1 || out.Rows[0]["Region"] != "North" {
		t.Errorf("Unexpected page: %+v", out)
	}
}

func TestStoreStats(t *testing.T) {
	s := newStore(t, time.Minute)

	_ = s.Set("key1", []byte(`1`))
	s.Get("key1")
	s.Get("key1")
	s.Get("missing")

	stats := s.GetStats()
	if stats.Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses)
	}
	if stats.Writes != 1 {
		t.Errorf("Expected 1 write, got %d", stats.Writes)
	}

	hitRate := s.HitRate()
	expected := 2.0 / 3.0 * 100.0
	if hitRate < expected-0.01 || hitRate > expected+0.01 {
		t.Errorf("Expected hit rate %.2f, got %.2f", expected, hitRate)
	}
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(config.CacheConfig{Enabled: true, Path: dir, TTL: time.Minute})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set("persist", []byte(`"yes"`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = Open(config.CacheConfig{Enabled: true, Path: dir, TTL: time.Minute})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, ok := s.Get("persist"); !ok || string(v) != `"yes"` {
		t.Errorf("Expected persisted value, got %s (%v)", v, ok)
	}
}

func TestGenerateKey(t *testing.T) {
	params := map[string]interface{}{"app": "sales", "table": "orders", "page": 1}

	key1 := GenerateKey("page", params)
	key2 := GenerateKey("page", params)
	if key1 != key2 {
		t.Error("Expected same parameters to generate same key")
	}

	params["page"] = 2
	if GenerateKey("page", params) == key1 {
		t.Error("Expected different parameters to generate different key")
	}
	if GenerateKey("other", map[string]interface{}{"app": "sales"}) == key1 {
		t.Error("Expected different prefix to generate different key")
	}
}

func TestStoreRunGC(t *testing.T) {
	mem := newStore(t, time.Minute)
	if rewrote, err := mem.RunGC(0.5); rewrote || err != nil {
		t.Errorf("in-memory RunGC = %v, %v", rewrote, err)
	}

	disk, err := Open(config.CacheConfig{Enabled: true, Path: t.TempDir(), TTL: time.Minute})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer disk.Close()
	if err := disk.Set("k", []byte(`1`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// A fresh value log has nothing worth rewriting.
	if _, err := disk.RunGC(0.5); err != nil {
		t.Errorf("RunGC: %v", err)
	}
}
