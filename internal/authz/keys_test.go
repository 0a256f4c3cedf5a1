// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/cubegate/internal/config"
)

func hashForTest(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestKeyStore_Authenticate(t *testing.T) {
	keys := []config.APIKeyConfig{
		{Name: "plain", Key: "plain-secret"},
		{Name: "hashed", KeyHash: hashForTest(t, "hashed-secret")},
	}
	s := NewKeyStore(keys, time.Minute)
	defer s.Close()

	tests := []struct {
		presented string
		wantName  string
		wantOK    bool
	}{
		{"plain-secret", "plain", true},
		{"hashed-secret", "hashed", true},
		{"hashed-secret", "hashed", true},
		{"wrong", "", false},
		{"", "", false},
		{"plain-secret ", "", false},
	}
	for _, tt := range tests {
		name, ok := s.Authenticate(tt.presented)
		if name != tt.wantName || ok != tt.wantOK {
			t.Errorf("Authenticate(%q) = %q, %v; want %q, %v", tt.presented, name, ok, tt.wantName, tt.wantOK)
		}
	}

	if n := s.verified.len(); n != 2 {
		t.Errorf("verified cache len = %d, want 2", n)
	}
}

func TestKeyStore_Reload(t *testing.T) {
	s := NewKeyStore([]config.APIKeyConfig{{Name: "old", Key: "old-secret"}}, 0)
	defer s.Close()

	if _, ok := s.Authenticate("old-secret"); !ok {
		t.Fatal("old key should authenticate")
	}

	s.Reload([]config.APIKeyConfig{{Name: "new", Key: "new-secret"}})

	if _, ok := s.Authenticate("old-secret"); ok {
		t.Error("old key should be rejected after reload")
	}
	if name, ok := s.Authenticate("new-secret"); !ok || name != "new" {
		t.Errorf("Authenticate(new-secret) = %q, %v", name, ok)
	}
}

func TestHashKey(t *testing.T) {
	hash, err := HashKey("s3cret")
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}

	if _, err := HashKey(""); err == nil {
		t.Error("empty key should fail")
	}
}
