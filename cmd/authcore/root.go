// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/logging"
	"github.com/holomush/authcore/internal/xdg"
)

// serviceName labels logs and the version output.
const serviceName = "authcore"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - authentication and session service",
		Long: `authcore registers users, verifies credentials with lockout protection,
issues access and refresh tokens, and manages password reset, email
verification and session revocation over a JSON HTTP API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default $XDG_CONFIG_HOME/authcore/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewPruneCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// loadConfig reads the configuration for cmd from --config, the changed
// flags and the environment. Without --config the file in the XDG config
// directory is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		defaultPath, ok, err := xdg.DefaultConfigFile()
		if err != nil {
			return nil, err
		}
		if ok {
			path = defaultPath
		}
	}
	return config.Load(path, cmd.Flags())
}

// setupLogging installs the default logger described by cfg.
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return nil, oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log format must be json or text, got %q", cfg.Log.Format)
	}
	return logging.SetDefault(serviceName, version, cfg.Log.Format, level), nil
}

// requireDatabaseURL returns the configured database URL or a CONFIG_INVALID error.
func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required (set --database-url or %s)", config.EnvDatabaseURL)
	}
	return cfg.Database.URL, nil
}
