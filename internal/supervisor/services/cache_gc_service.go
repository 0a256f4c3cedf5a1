// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package services

import (
	"context"
	"time"

	"github.com/tomtom215/cubegate/internal/logging"
)

// maxGCPasses bounds the rewrites done in one tick.
const maxGCPasses = 10

// ValueLogCollector is the part of cache.Store the collector drives.
type ValueLogCollector interface {
	RunGC(discardRatio float64) (bool, error)
}

// CacheGCService periodically reclaims space in the on-disk page cache.
type CacheGCService struct {
	store        ValueLogCollector
	interval     time.Duration
	discardRatio float64
}

// NewCacheGCService creates the collector. discardRatio is the stale
// fraction a value log file needs before it is rewritten.
func NewCacheGCService(store ValueLogCollector, interval time.Duration, discardRatio float64) *CacheGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	return &CacheGCService{store: store, interval: interval, discardRatio: discardRatio}
}

// Serve implements suture.Service.
func (s *CacheGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.collect(ctx); err != nil {
				return err
			}
		}
	}
}

// collect repeats GC while files are being rewritten, as badger
// recommends.
func (s *CacheGCService) collect(ctx context.Context) error {
	rewritten := 0
	for i := 0; i < maxGCPasses && ctx.Err() == nil; i++ {
		ok, err := s.store.RunGC(s.discardRatio)
		if err != nil {
			logging.Error().Err(err).Msg("Page cache GC failed")
			return err
		}
		if !ok {
			break
		}
		rewritten++
	}
	if rewritten > 0 {
		logging.Debug().Int("files", rewritten).Msg("Page cache value log compacted")
	}
	return nil
}

// String implements fmt.Stringer for suture's logs.
func (s *CacheGCService) String() string {
	return "cache-gc"
}
