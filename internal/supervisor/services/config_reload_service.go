// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/logging"
)

// LoadFunc loads a complete, validated configuration.
type LoadFunc func() (*config.Config, error)

// ApplyFunc installs a reloaded configuration.
type ApplyFunc func(cfg *config.Config) error

// ConfigReloadService reloads the configuration whenever its file changes.
type ConfigReloadService struct {
	path  string
	load  LoadFunc
	apply ApplyFunc
}

// NewConfigReloadService watches path. load is normally
// config.LoadWithKoanf so that environment overrides still apply.
func NewConfigReloadService(path string, load LoadFunc, apply ApplyFunc) *ConfigReloadService {
	return &ConfigReloadService{path: path, load: load, apply: apply}
}

// Serve implements suture.Service. A watch error returns so the
// supervisor can re-establish the watch.
func (s *ConfigReloadService) Serve(ctx context.Context) error {
	events := make(chan error, 1)
	stop, err := config.WatchConfigFile(s.path, func(err error) {
		// Coalesce bursts of writes into one pending reload.
		select {
		case events <- err:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = stop() }()

	logging.Info().Str("path", s.path).Msg("Watching configuration file")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-events:
			if err != nil {
				return fmt.Errorf("config watch: %w", err)
			}
			s.reload()
		}
	}
}

func (s *ConfigReloadService) reload() {
	cfg, err := s.load()
	if err != nil {
		logging.Error().Err(err).Str("path", s.path).Msg("Config reload failed, keeping previous configuration")
		return
	}
	if err := s.apply(cfg); err != nil {
		logging.Error().Err(err).Msg("Applying reloaded configuration failed")
		return
	}
	logging.Info().
		Str("path", s.path).
		Int("api_keys", len(cfg.APIKeys)).
		Msg("Configuration reloaded")
}

// String implements fmt.Stringer for suture's logs.
func (s *ConfigReloadService) String() string {
	return "config-reload"
}
