// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/observability"
	"github.com/holomush/authcore/internal/store"
	"github.com/holomush/authcore/internal/web"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication HTTP API",
		Long: `Connect to PostgreSQL (and Redis when configured), then serve the JSON
authentication API until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
}

// runServeWithDeps runs the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("starting authcore",
		"http_addr", cfg.HTTP.Addr,
		"lockout_backend", cfg.Lockout.Backend,
		"mail_transport", cfg.Mail.Transport,
		"mail_queue", cfg.Mail.Queue,
	)

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
		MaxConns: cfg.Database.MaxConns,
		Attempts: cfg.Database.ConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := runAutoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = deps.RedisFactory(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				logger.Debug("error closing redis client", "error", closeErr)
			}
		}()
		logger.Info("connected to redis")
	}

	var (
		observer     auth.Observer
		httpObserver web.HTTPObserver
		obsServer    ObservabilityServer
	)
	if cfg.Metrics.Addr != "" {
		checks := map[string]observability.ReadinessCheck{"postgres": pool.Ping}
		if rdb != nil {
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, checks, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		if m := obsServer.Metrics(); m != nil {
			observer = m
			httpObserver = m
		}
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	svcCfg, err := cfg.ServiceConfig()
	if err != nil {
		return err
	}
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return err
	}
	codec, err := auth.NewJWTCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	emailPolicy, err := auth.NewEmailPolicy(cfg.Auth.AllowedEmails)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.allowed_emails").Wrap(err)
	}
	tracker, err := buildTracker(cfg, pool, rdb)
	if err != nil {
		return err
	}
	mailer, worker, err := buildMailer(cfg, rdb, logger)
	if err != nil {
		return err
	}

	var workerWG sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()
	if worker != nil {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(workerCtx)
		}()
	}

	svc, err := auth.NewService(svcCfg, auth.ServiceDeps{
		Users:       postgres.NewUserRepository(pool),
		Sessions:    postgres.NewSessionRepository(pool),
		ResetTokens: postgres.NewResetTokenRepository(pool),
		Attempts:    tracker,
		Hasher:      hasher,
		Tokens:      codec,
		Mailer:      mailer,
		EmailPolicy: emailPolicy,
		Observer:    observer,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	router := web.NewRouter(svc, web.RouterOptions{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Observer:       httpObserver,
		Logger:         logger,
	})
	api := deps.APIServerFactory(cfg.HTTP.Addr, router, logger)
	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	cmd.Println("authcore started")
	logger.Info("authcore ready", "http_addr", api.Addr())

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := api.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := svc.Close(shutdownCtx); err != nil {
		logger.Warn("pending mail not flushed", "error", err)
	}
	stopWorker()
	workerWG.Wait()
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	cmd.Println("authcore stopped")
	return nil
}

// runAutoMigrate applies pending migrations before serving.
func runAutoMigrate(url string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	m, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// monitorServerErrors cancels ctx when the server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
