// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/memstore"
	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/lockout"
	"github.com/holomush/authcore/internal/mail"
)

// mailWorker drains a mail queue until its context ends.
type mailWorker interface {
	Run(ctx context.Context)
}

// buildTracker returns the login attempt tracker for the configured backend.
func buildTracker(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) (auth.LoginAttemptTracker, error) {
	policy := cfg.LockoutPolicy()
	switch cfg.Lockout.Backend {
	case config.LockoutMemory:
		return memstore.NewAttempts(policy, nil), nil
	case config.LockoutPostgres:
		if pool == nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "lockout.backend").Errorf("postgres lockout backend needs a database pool")
		}
		return postgres.NewAttemptTracker(pool, policy, nil), nil
	case config.LockoutRedis:
		if rdb == nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "redis.url").Errorf("redis lockout backend needs a redis client")
		}
		return lockout.NewRedisTracker(rdb, policy, nil)
	default:
		return nil, oops.Code("CONFIG_INVALID").With("key", "lockout.backend").Errorf("unknown lockout backend %q", cfg.Lockout.Backend)
	}
}

// buildMailer returns the mailer for the configured transport. When the mail
// queue is enabled the transport sits behind a Redis queue and the returned
// worker must be run to deliver it.
func buildMailer(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (auth.Mailer, mailWorker, error) {
	var transport auth.Mailer
	switch cfg.Mail.Transport {
	case config.MailLog:
		transport = mail.NewLogMailer(logger)
	case config.MailSMTP:
		composer, err := mail.NewComposer(cfg.Mail.From, cfg.Mail.LinkBaseURL)
		if err != nil {
			return nil, nil, err
		}
		smtpMailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:       cfg.Mail.SMTP.Host,
			Port:       cfg.Mail.SMTP.Port,
			Username:   cfg.Mail.SMTP.Username,
			Password:   cfg.Mail.SMTP.Password,
			RequireTLS: cfg.Mail.SMTP.StartTLS,
		}, composer)
		if err != nil {
			return nil, nil, err
		}
		transport = smtpMailer
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("key", "mail.transport").Errorf("unknown mail transport %q", cfg.Mail.Transport)
	}

	if !cfg.Mail.Queue {
		return transport, nil, nil
	}
	if rdb == nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("key", "redis.url").Errorf("mail queue needs a redis client")
	}
	queued, err := mail.NewQueuedMailer(transport, rdb, mail.QueueOptions{
		MaxSize: mail.DefaultMaxQueueSize,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return queued, queued, nil
}
