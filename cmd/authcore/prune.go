// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/store"
)

// defaultPruneAge is how long expired rows are kept before prune removes them.
const defaultPruneAge = 7 * 24 * time.Hour

// pruneConfig holds configuration for the prune command.
type pruneConfig struct {
	olderThan time.Duration
	timeout   time.Duration
}

// NewPruneCmd creates the prune subcommand.
func NewPruneCmd() *cobra.Command {
	return newPruneCmd(nil)
}

func newPruneCmd(deps *CommonDeps) *cobra.Command {
	if deps == nil {
		deps = &CommonDeps{}
	}
	deps.withDefaults()
	pcfg := &pruneConfig{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions, tokens and login attempt records",
		Long: `Delete sessions and one-time tokens that expired before the cutoff, and
login attempt records whose window and cooldown both ended before it.
Run it periodically, for example from cron.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd, pcfg, deps)
		},
	}

	cmd.Flags().DurationVar(&pcfg.olderThan, "older-than", defaultPruneAge, "keep rows that expired more recently than this")
	cmd.Flags().DurationVar(&pcfg.timeout, "timeout", time.Minute, "timeout for database operations")

	return cmd
}

// pruneCutoff returns the instant before which expired rows are deleted.
func pruneCutoff(now time.Time, olderThan time.Duration) (time.Time, error) {
	if olderThan < 0 {
		return time.Time{}, oops.Code("INVALID_ARGUMENT").With("older_than", olderThan).Errorf("--older-than must not be negative")
	}
	return now.Add(-olderThan), nil
}

func runPrune(cmd *cobra.Command, pcfg *pruneConfig, deps *CommonDeps) error {
	cutoff, err := pruneCutoff(time.Now(), pcfg.olderThan)
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

	ctx, cancel := context.WithTimeout(cmd.Context(), pcfg.timeout)
	defer cancel()

	pool, err := deps.PoolFactory(ctx, url, store.ConnectOptions{Attempts: cfg.Database.ConnectAttempts, Logger: logger})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	sessions, err := postgres.NewSessionRepository(pool).PurgeExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	tokens, err := postgres.NewResetTokenRepository(pool).PurgeExpired(ctx, cutoff)
	if err != nil {
		return err
	}
	attempts, err := postgres.NewAttemptTracker(pool, cfg.LockoutPolicy(), nil).PurgeStale(ctx, cutoff)
	if err != nil {
		return err
	}

	logger.Info("prune complete",
		"cutoff", cutoff,
		"sessions", sessions,
		"tokens", tokens,
		"attempts", attempts,
	)
	cmd.Printf("Pruned %d sessions, %d tokens, %d login attempt records\n", sessions, tokens, attempts)
	return nil
}
