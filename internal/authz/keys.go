// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/cubegate/internal/config"
)

// DefaultVerifyTTL bounds how long a bcrypt verification is remembered.
const DefaultVerifyTTL = time.Minute

type apiKey struct {
	name  string
	plain []byte
	hash  []byte
}

// KeyStore verifies presented API keys against configuration.
type KeyStore struct {
	mu       sync.RWMutex
	keys     []apiKey
	verified *ttlCache[string]
}

// NewKeyStore builds a store from configured keys.
func NewKeyStore(keys []config.APIKeyConfig, verifyTTL time.Duration) *KeyStore {
	if verifyTTL <= 0 {
		verifyTTL = DefaultVerifyTTL
	}
	s := &KeyStore{verified: newTTLCache[string](verifyTTL)}
	s.Reload(keys)
	return s
}

// Reload replaces the configured keys and forgets cached verifications.
func (s *KeyStore) Reload(keys []config.APIKeyConfig) {
	loaded := make([]apiKey, 0, len(keys))
	for _, k := range keys {
		entry := apiKey{name: k.Name}
		if k.KeyHash != "" {
			entry.hash = []byte(k.KeyHash)
		} else {
			entry.plain = []byte(k.Key)
		}
		loaded = append(loaded, entry)
	}

	s.mu.Lock()
	s.keys = loaded
	s.mu.Unlock()
	s.verified.clear()
}

// Authenticate returns the name of the key matching presented.
func (s *KeyStore) Authenticate(presented string) (string, bool) {
	if presented == "" {
		return "", false
	}
	digest := sha256.Sum256([]byte(presented))
	fingerprint := hex.EncodeToString(digest[:])
	if name, ok := s.verified.get(fingerprint); ok {
		return name, true
	}

	s.mu.RLock()
	keys := s.keys
	s.mu.RUnlock()

	// Every plain key is compared so timing does not reveal which one matched.
	match := ""
	for _, k := range keys {
		if k.plain != nil && subtle.ConstantTimeCompare(k.plain, []byte(presented)) == 1 {
			match = k.name
		}
	}
	if match == "" {
		for _, k := range keys {
			if k.hash != nil && bcrypt.CompareHashAndPassword(k.hash, []byte(presented)) == nil {
				match = k.name
				break
			}
		}
	}
	if match == "" {
		return "", false
	}

	s.verified.set(fingerprint, match)
	return match, true
}

// Close stops background cleanup.
func (s *KeyStore) Close() {
	s.verified.stop()
}

// HashKey returns the bcrypt hash to put in an api_keys[].key_hash entry.
func HashKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}
	return string(hash), nil
}
