// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"slices"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/logging"
)

// minSigningKeyLength matches the HS256 key length enforced by auth.NewJWTCodec.
const minSigningKeyLength = 32

// RegisterFlags adds the overridable flags to fs. Flag defaults are only
// documentation; unset flags never override the file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("http-addr", d.HTTP.Addr, "HTTP API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address, empty to disable")
	fs.String("database-url", "", "PostgreSQL URL (default $"+EnvDatabaseURL+")")
	fs.String("redis-url", "", "Redis URL (default $"+EnvRedisURL+")")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
	fs.String("lockout-backend", d.Lockout.Backend, "login attempt tracker (postgres, redis, memory)")
	fs.String("mail-transport", d.Mail.Transport, "mail transport (smtp or log)")
	fs.Bool("mail-queue", false, "queue mail through Redis and deliver from a worker")
}

// Validate checks the configuration needed to serve requests.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "must be json or text")
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "is required")
	}
	if c.Database.URL == "" {
		return invalid("database.url", "", "is required (set "+EnvDatabaseURL+")")
	}
	if len(c.Auth.JWTSecret) < minSigningKeyLength {
		return invalid("auth.jwt_secret", "<redacted>", "must be at least 32 bytes (set "+EnvJWTSecret+")")
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"http.request_timeout", c.HTTP.RequestTimeout},
		{"http.shutdown_timeout", c.HTTP.ShutdownTimeout},
		{"lockout.window", c.Lockout.Window},
		{"lockout.cooldown", c.Lockout.Cooldown},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return invalid(d.key, d.value, "must be positive")
		}
	}
	if c.Lockout.Threshold < 1 {
		return invalid("lockout.threshold", c.Lockout.Threshold, "must be at least 1")
	}
	if !slices.Contains([]string{LockoutMemory, LockoutPostgres, LockoutRedis}, c.Lockout.Backend) {
		return invalid("lockout.backend", c.Lockout.Backend, "must be postgres, redis or memory")
	}
	if c.Lockout.Backend == LockoutRedis && c.Redis.URL == "" {
		return invalid("redis.url", "", "is required by the redis lockout backend")
	}

	switch c.Mail.Transport {
	case MailLog:
	case MailSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port <= 0 {
			return invalid("mail.smtp.host", c.Mail.SMTP.Host, "host and port are required by the smtp transport")
		}
	default:
		return invalid("mail.transport", c.Mail.Transport, "must be smtp or log")
	}
	if c.Mail.Queue && c.Redis.URL == "" {
		return invalid("redis.url", "", "is required by the mail queue")
	}
	if c.Mail.From == "" {
		return invalid("mail.from", "", "is required")
	}

	if _, err := c.ServiceConfig(); err != nil {
		return err
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.With("key", "auth.argon2").Wrap(err)
	}
	return nil
}

// ServiceConfig returns the auth.Service tunables.
func (c *Config) ServiceConfig() (auth.ServiceConfig, error) {
	roles := make([]auth.Role, 0, len(c.Auth.SelfAssignableRoles))
	for _, name := range c.Auth.SelfAssignableRoles {
		role, err := auth.ParseRole(name)
		if err != nil {
			return auth.ServiceConfig{}, invalid("auth.self_assignable_roles", name, "unknown role")
		}
		roles = append(roles, role)
	}
	sc := auth.ServiceConfig{
		AccessTokenTTL:                 c.Auth.AccessTokenTTL,
		SessionTTL:                     c.Auth.SessionTTL,
		RememberMeTTL:                  c.Auth.RememberMeTTL,
		ResetTokenTTL:                  c.Auth.ResetTokenTTL,
		VerifyTokenTTL:                 c.Auth.VerifyTokenTTL,
		MailTimeout:                    c.Auth.MailTimeout,
		RevokeSessionsOnPasswordChange: c.Auth.RevokeSessionsOnPasswordChange,
		SelfAssignableRoles:            roles,
	}
	if err := sc.Validate(); err != nil {
		return auth.ServiceConfig{}, err
	}
	return sc, nil
}

// LockoutPolicy returns the configured lockout policy.
func (c *Config) LockoutPolicy() auth.LockoutPolicy {
	return auth.LockoutPolicy{
		Threshold: c.Lockout.Threshold,
		Window:    c.Lockout.Window,
		Cooldown:  c.Lockout.Cooldown,
	}
}

// Argon2Params returns the configured hasher parameters.
func (c *Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params()
	p.Time = c.Auth.Argon2.Time
	p.MemoryKiB = c.Auth.Argon2.MemoryKiB
	p.Threads = c.Auth.Argon2.Threads
	return p
}

func invalid(key string, value any, reason string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf("%s %s", key, reason)
}
