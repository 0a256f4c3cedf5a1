// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cubegate/internal/config"
	"github.com/tomtom215/cubegate/internal/engine"
	"github.com/tomtom215/cubegate/internal/logging"
	"github.com/tomtom215/cubegate/internal/service"
)

// backend is the part of service.DataService the commands use.
type backend interface {
	EngineVersion(ctx context.Context) (string, error)
	DocList(ctx context.Context) ([]engine.DocListEntry, error)
	Bookmarks(ctx context.Context, app string) ([]service.Bookmark, error)
	Inspect(ctx context.Context, app, objectID string) (*service.ObjectSummary, error)
	Resolve(app, table string) (service.Target, error)
	Fetch(ctx context.Context, target service.Target, q service.Query) (*service.Page, error)
}

type cli struct {
	configPath string
	output     string

	// connect builds the backend once the configuration is loaded.
	connect func(cfg *config.Config) (backend, error)
	backend backend
}

func connectEngine(cfg *config.Config) (backend, error) {
	conn, err := engine.NewConnector(cfg.Engine)
	if err != nil {
		return nil, err
	}
	// The CLI never repeats a page, so it runs without the page cache.
	return service.New(cfg, service.ConnectorOpener(conn), nil), nil
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "cubectl",
		Short:         "Cubegate engine diagnostics",
		Long:          `cubectl lists documents and bookmarks, describes objects and extracts tables through the Cubegate extraction path.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default: $CONFIG_PATH or ./config.yaml)")
	flags.StringVarP(&c.output, "output", "o", "table", "output format (table|json)")
	flags.String("engine.host", "", "engine host")
	flags.Int("engine.port", 0, "engine port")
	flags.String("engine.user-directory", "", "engine user directory")
	flags.String("engine.user-id", "", "engine user id")
	flags.Bool("engine.verify-ssl", false, "verify the engine's TLS certificate")
	flags.String("logging.level", "warn", "log level")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newVersionCmd(c),
		newDocsCmd(c),
		newBookmarksCmd(c),
		newInspectCmd(c),
		newExtractCmd(c),
		newHashKeyCmd(),
	)
	return root
}

// service loads the configuration and connects on first use.
func (c *cli) service(cmd *cobra.Command) (backend, error) {
	if c.backend != nil {
		return c.backend, nil
	}
	if c.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, c.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Root().PersistentFlags()
	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		return nil, err
	}

	// Logs go to stderr so that stdout stays parseable.
	level := cfg.Logging.Level
	if !flags.Changed("logging.level") {
		level = "warn"
	}
	logging.Init(logging.Config{Level: level, Format: "console", Output: os.Stderr})

	b, err := c.connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to engine: %w", err)
	}
	c.backend = b
	return b, nil
}
