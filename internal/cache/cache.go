// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package cache

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/metrics"
)

// envelope is the stored form of an entry.
type envelope struct {
	ExpiresAt int64           `json:"exp"`
	Data      json.RawMessage `json:"data"`
}

// Store is a TTL cache backed by BadgerDB.
type Store struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	stats    Stats
}

// Stats tracks cache performance.
type Stats struct {
	mu        sync.RWMutex
	Hits      int64
	Misses    int64
	Evictions int64
	Writes    int64
}

// Open opens the store described by cfg. An empty path keeps everything
// in memory.
func Open(cfg config.CacheConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(badgerLogger{})
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open page cache: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Store{db: db, ttl: ttl, inMemory: cfg.Path == ""}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC rewrites one value log file if at least discardRatio of it is
// stale. It reports whether a file was rewritten; in-memory stores never
// collect.
func (s *Store) RunGC(discardRatio float64) (bool, error) {
	if s.inMemory {
		return false, nil
	}
	err := s.db.RunValueLogGC(discardRatio)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
		return false, nil
	default:
		return false, fmt.Errorf("value log gc: %w", err)
	}
}

// TTL returns the default time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Get returns the bytes stored under key if they have not expired.
func (s *Store) Get(key string) ([]byte, bool) {
	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		s.recordMiss()
		return nil, false
	}

	if time.Now().UnixMilli() >= env.ExpiresAt {
		s.Delete(key)
		s.recordMiss()
		return nil, false
	}

	s.recordHit()
	return env.Data, true
}

// Set stores data under key with the default TTL.
func (s *Store) Set(key string, data []byte) error {
	return s.SetWithTTL(key, data, s.ttl)
}

// SetWithTTL stores data under key with a custom TTL.
func (s *Store) SetWithTTL(key string, data []byte, ttl time.Duration) error {
	if !json.Valid(data) {
		return errors.New("cache values must be JSON")
	}
	val, err := json.Marshal(envelope{ExpiresAt: time.Now().Add(ttl).UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	// Badger TTLs are whole seconds; round up so the bytes outlive the
	// envelope's own expiry.
	badgerTTL := ttl.Truncate(time.Second) + time.Second
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), val).WithTTL(badgerTTL))
	})
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	s.stats.mu.Lock()
	s.stats.Writes++
	s.stats.mu.Unlock()
	return nil
}

// GetJSON decodes the entry under key into v.
func (s *Store) GetJSON(key string, v interface{}) bool {
	data, ok := s.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// SetJSON encodes v and stores it under key.
func (s *Store) SetJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.Set(key, data)
}

// Delete removes key.
func (s *Store) Delete(key string) {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err == nil {
		s.recordEviction()
	}
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clear page cache: %w", err)
	}
	return nil
}

// GetStats returns a snapshot of the statistics.
func (s *Store) GetStats() Stats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return Stats{
		Hits:      s.stats.Hits,
		Misses:    s.stats.Misses,
		Evictions: s.stats.Evictions,
		Writes:    s.stats.Writes,
	}
}

// HitRate returns the hit rate as a percentage.
func (s *Store) HitRate() float64 {
	stats := s.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (s *Store) recordHit() {
	s.stats.mu.Lock()
	s.stats.Hits++
	s.stats.mu.Unlock()
	metrics.PageCacheHits.Inc()
}

func (s *Store) recordMiss() {
	s.stats.mu.Lock()
	s.stats.Misses++
	s.stats.mu.Unlock()
	metrics.PageCacheMisses.Inc()
}

func (s *Store) recordEviction() {
	s.stats.mu.Lock()
	s.stats.Evictions++
	s.stats.mu.Unlock()
}

// GenerateKey creates a cache key from a prefix and parameters.
func GenerateKey(prefix string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", prefix, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", prefix, hash[:16])
}
