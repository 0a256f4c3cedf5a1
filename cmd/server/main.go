// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/cubegate/internal/api"
	"github.com/tomtom215/cubegate/internal/authz"
	"github.com/tomtom215/cubegate/internal/cache"
	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/service"
	"github.com/tomtom215/cubegate/internal/supervisor"
	"github.com/tomtom215/cubegate/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("engine", net.JoinHostPort(cfg.Engine.Host, strconv.Itoa(cfg.Engine.Port))).
		Int("apps", len(cfg.Apps)).
		Int("api_keys", len(cfg.APIKeys)).
		Msg("Starting Cubegate")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Cubegate stopped with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	var store *cache.Store
	if cfg.Cache.Enabled {
		s, err := cache.Open(cfg.Cache)
		if err != nil {
			return fmt.Errorf("open page cache: %w", err)
		}
		defer func() {
			if err := s.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close page cache")
			}
		}()
		store = s
		logging.Info().Str("path", cfg.Cache.Path).Dur("ttl", cfg.Cache.TTL).Msg("Page cache enabled")
	}

	conn, err := engine.NewConnector(cfg.Engine)
	if err != nil {
		return fmt.Errorf("engine connector: %w", err)
	}
	dataService := service.New(cfg, service.ConnectorOpener(conn), store)

	audit := authz.NewAuditLogger(authz.DefaultAuditLoggerConfig())
	defer audit.Close()

	enforcerCfg := authz.DefaultEnforcerConfig()
	enforcerCfg.Audit = audit
	enforcer, err := authz.NewEnforcer(cfg.APIKeys, enforcerCfg)
	if err != nil {
		return fmt.Errorf("access control: %w", err)
	}
	defer enforcer.Close()

	keys := authz.NewKeyStore(cfg.APIKeys, 0)
	defer keys.Close()

	access := authz.NewMiddleware(keys, enforcer, cfg.Security.APIKeyHeader, api.AccessErrorWriter())

	handler := api.NewHandler(api.HandlerOptions{
		Service:      dataService,
		Enforcer:     enforcer,
		BreakerState: conn.State,
		ProbeEngine:  cfg.Server.ReadyProbeEngine,
	})
	chiMW := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security))
	router := api.NewRouter(handler, access, chiMW, cfg.Server.APIPrefix)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if path := config.ConfigFile(); path != "" {
		tree.AddMaintenanceService(services.NewConfigReloadService(path, config.LoadWithKoanf,
			func(next *config.Config) error {
				if err := enforcer.Reload(next.APIKeys); err != nil {
					return err
				}
				keys.Reload(next.APIKeys)
				return nil
			}))
	}
	if store != nil && cfg.Cache.Path != "" {
		tree.AddMaintenanceService(services.NewCacheGCService(store, 0, 0))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return serveErr
}
