// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/logging"
)

// BuildTLSConfig builds the client TLS configuration for wss:// candidates.
// Certificate files that do not exist are skipped with a warning so that a
// plain ws:// deployment can run with the default paths configured.
func BuildTLSConfig(cfg config.EngineConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// #nosec G402 -- verify_ssl=false is an explicit operator choice for self-signed engines
		InsecureSkipVerify: !cfg.VerifySSL,
	}

	if cfg.CertPath != "" && cfg.KeyPath != "" {
		if fileExists(cfg.CertPath) && fileExists(cfg.KeyPath) {
			cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
			if err != nil {
				return nil, fmt.Errorf("load client certificate: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		} else {
			logging.Warn().Str("cert", cfg.CertPath).Str("key", cfg.KeyPath).
				Msg("Engine client certificate not found, connecting without client auth")
		}
	}

	if cfg.RootCertPath != "" {
		if !fileExists(cfg.RootCertPath) {
			logging.Warn().Str("root_cert", cfg.RootCertPath).Msg("Engine root certificate not found, using system pool")
			return tlsCfg, nil
		}
		pem, err := os.ReadFile(cfg.RootCertPath)
		if err != nil {
			return nil, fmt.Errorf("read root certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("root certificate %s: no PEM certificates found", cfg.RootCertPath)
		}
		tlsCfg.RootCAs = pool
	}

	return tlsCfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
