// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/seed"
	"github.com/holomush/authcore/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 2 * time.Minute

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	return newSeedCmd(nil)
}

func newSeedCmd(deps *CommonDeps) *cobra.Command {
	if deps == nil {
		deps = &CommonDeps{}
	}
	deps.withDefaults()
	scfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the users listed in a seed file",
		Long: `Create bootstrap users, such as the first ADMIN, from a YAML seed file.
Users whose email already exists are skipped, so the command is idempotent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, scfg, deps)
		},
	}

	cmd.Flags().StringVarP(&scfg.file, "file", "f", "", "seed file path (YAML)")
	cmd.Flags().DurationVar(&scfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, scfg *seedConfig, deps *CommonDeps) error {
	// Parse the file before touching the database.
	file, err := seed.Load(scfg.file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	url, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), scfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := deps.PoolFactory(ctx, url, store.ConnectOptions{Attempts: cfg.Database.ConnectAttempts, Logger: logger})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	seeder := seed.NewSeeder(postgres.NewUserRepository(pool), hasher, seed.WithLogger(logger))
	res, err := seeder.Apply(ctx, file)
	if err != nil {
		return err
	}

	for _, email := range res.Created {
		cmd.Printf("created %s\n", email)
	}
	for _, email := range res.Skipped {
		cmd.Printf("skipped %s (already exists)\n", email)
	}
	cmd.Printf("Seed complete: %d created, %d skipped\n", len(res.Created), len(res.Skipped))
	return nil
}
