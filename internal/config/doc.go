// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Package config loads the gateway configuration.
//
// Configuration is layered with koanf, lowest priority first:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file from CONFIG_PATH or one of DefaultConfigPaths
//  3. Environment variables (see envTransformFunc for the accepted names)
//  4. Command line flags (cubectl only, via LoadWithFlags)
//
// The resulting *Config is built once in main and passed to every component
// that needs it; nothing in the gateway reads configuration from globals.
//
// # Example config.yaml
//
//	engine:
//	  host: qlik.example.com
//	  user_directory: INTERNAL
//	  user_id: sa_api
//	apps:
//	  sales:
//	    doc_id: 8f2b6f4e-1d3c-4a5b-9e7f-0a1b2c3d4e5f
//	    default_table: orders
//	    tables:
//	      orders:
//	        object_id: hJkPq
//	        bookmark_id: 3c1e7d2a-...
//	        filters:
//	          factory: Factory
//	        yearmonth_field: YearMonth
//	api_keys:
//	  - name: reporting
//	    key_hash: $2a$10$...
//	    apps:
//	      sales: ["orders"]
package config
