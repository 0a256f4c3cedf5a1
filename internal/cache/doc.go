// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package cache stores extraction pages with a time-to-live.

Identical page requests within the TTL are answered without opening an
engine session. Entries live in BadgerDB, either in memory or in a
directory when one is configured, so a restart can keep warm pages.

# Usage Example

	store, err := cache.Open(cfg.Cache)
	if err != nil {
	    return err
	}
	defer store.Close()

	key := cache.GenerateKey("page", req)
	var page Page
	if store.GetJSON(key, &page) {
	    return page, nil
	}
	// ... extract ...
	_ = store.SetJSON(key, page)

# Expiry

Each entry records its own expiry with millisecond precision and is
checked on read. Badger's per-key TTL (second granularity) removes the
bytes during compaction.

# Cache Key Conventions

	page:<hash>     // one extraction page, hash of app, table and query
*/
package cache
