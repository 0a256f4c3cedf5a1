// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/cubegate/internal/config"
)

func TestConfigReloadService_AppliesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var loads, applies atomic.Int32
	applied := make(chan *config.Config, 4)
	svc := NewConfigReloadService(path,
		func() (*config.Config, error) {
			loads.Add(1)
			return &config.Config{APIKeys: []config.APIKeyConfig{{Name: "rotated"}}}, nil
		},
		func(cfg *config.Config) error {
			applies.Add(1)
			select {
			case applied <- cfg:
			default:
			}
			return nil
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-applied:
		if len(cfg.APIKeys) != 1 || cfg.APIKeys[0].Name != "rotated" {
			t.Errorf("applied config = %+v", cfg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
}

func TestConfigReloadService_KeepsPreviousOnLoadError(t *testing.T) {
	var applies atomic.Int32
	svc := NewConfigReloadService("unused",
		func() (*config.Config, error) { return nil, errors.New("bad yaml") },
		func(*config.Config) error { applies.Add(1); return nil },
	)

	svc.reload()

	if applies.Load() != 0 {
		t.Error("apply called after failed load")
	}
	if svc.String() != "config-reload" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestConfigReloadService_MissingFile(t *testing.T) {
	svc := NewConfigReloadService(filepath.Join(t.TempDir(), "absent", "config.yaml"),
		func() (*config.Config, error) { return &config.Config{}, nil },
		func(*config.Config) error { return nil },
	)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := svc.Serve(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want watch error", err)
	}
}
