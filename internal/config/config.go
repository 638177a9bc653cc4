// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authcore configuration with koanf.
//
// Sources are applied in order, each overriding the previous one:
// built-in defaults, the YAML file given with --config, then command-line
// flags that were explicitly set. Secrets missing from both fall back to
// environment variables.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/authcore/internal/auth"
)

// Environment variables consulted for secrets.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvRedisURL     = "REDIS_URL"
	EnvJWTSecret    = "AUTHCORE_JWT_SECRET" //nolint:gosec // G101: variable name, not a credential
	EnvSMTPPassword = "AUTHCORE_SMTP_PASSWORD"
)

// Lockout backends.
const (
	LockoutMemory   = "memory"
	LockoutPostgres = "postgres"
	LockoutRedis    = "redis"
)

// Mail transports.
const (
	MailSMTP = "smtp"
	MailLog  = "log"
)

// Config is the complete authcore configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Auth     AuthConfig     `koanf:"auth"`
	Lockout  LockoutConfig  `koanf:"lockout"`
	Mail     MailConfig     `koanf:"mail"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	MaxConns        int32  `koanf:"max_conns"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
	AutoMigrate     bool   `koanf:"auto_migrate"`
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig holds the token and session tunables.
type AuthConfig struct {
	JWTSecret                      string        `koanf:"jwt_secret"`
	Issuer                         string        `koanf:"issuer"`
	AccessTokenTTL                 time.Duration `koanf:"access_token_ttl"`
	SessionTTL                     time.Duration `koanf:"session_ttl"`
	RememberMeTTL                  time.Duration `koanf:"remember_me_ttl"`
	ResetTokenTTL                  time.Duration `koanf:"reset_token_ttl"`
	VerifyTokenTTL                 time.Duration `koanf:"verify_token_ttl"`
	MailTimeout                    time.Duration `koanf:"mail_timeout"`
	RevokeSessionsOnPasswordChange bool          `koanf:"revoke_sessions_on_password_change"`
	SelfAssignableRoles            []string      `koanf:"self_assignable_roles"`
	AllowedEmails                  []string      `koanf:"allowed_emails"`
	Argon2                         Argon2Config  `koanf:"argon2"`
}

// Argon2Config holds the argon2id work factors.
type Argon2Config struct {
	Time      uint32 `koanf:"time"`
	MemoryKiB uint32 `koanf:"memory_kib"`
	Threads   uint8  `koanf:"threads"`
}

// LockoutConfig selects the attempt tracker backend and its policy.
type LockoutConfig struct {
	Backend   string        `koanf:"backend"`
	Threshold int           `koanf:"threshold"`
	Window    time.Duration `koanf:"window"`
	Cooldown  time.Duration `koanf:"cooldown"`
}

// MailConfig selects how token emails are delivered.
type MailConfig struct {
	Transport   string     `koanf:"transport"`
	Queue       bool       `koanf:"queue"`
	From        string     `koanf:"from"`
	LinkBaseURL string     `koanf:"link_base_url"`
	SMTP        SMTPConfig `koanf:"smtp"`
}

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	StartTLS bool   `koanf:"starttls"`
}

// Default returns the built-in configuration.
func Default() Config {
	argon := auth.DefaultArgon2Params()
	return Config{
		Log:     LogConfig{Format: "json", Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080", RequestTimeout: 15 * time.Second, ShutdownTimeout: 20 * time.Second},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnectAttempts: 10,
		},
		Auth: AuthConfig{
			Issuer:              "authcore",
			AccessTokenTTL:      auth.DefaultAccessTokenTTL,
			SessionTTL:          auth.DefaultSessionTTL,
			RememberMeTTL:       auth.DefaultRememberMeTTL,
			ResetTokenTTL:       auth.DefaultResetTokenTTL,
			VerifyTokenTTL:      auth.DefaultVerifyTokenTTL,
			MailTimeout:         auth.DefaultMailTimeout,
			SelfAssignableRoles: []string{string(auth.RoleViewer), string(auth.RoleEditor)},
			Argon2:              Argon2Config{Time: argon.Time, MemoryKiB: argon.MemoryKiB, Threads: argon.Threads},
		},
		Lockout: LockoutConfig{
			Backend:   LockoutPostgres,
			Threshold: auth.DefaultLockoutThreshold,
			Window:    auth.DefaultLockoutWindow,
			Cooldown:  auth.DefaultLockoutCooldown,
		},
		Mail: MailConfig{
			Transport:   MailLog,
			From:        "authcore <no-reply@localhost>",
			LinkBaseURL: "http://localhost:3000",
			SMTP:        SMTPConfig{Port: 587, StartTLS: true},
		},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":      "log.format",
	"log-level":       "log.level",
	"http-addr":       "http.addr",
	"metrics-addr":    "metrics.addr",
	"database-url":    "database.url",
	"redis-url":       "redis.url",
	"auto-migrate":    "database.auto_migrate",
	"lockout-backend": "lockout.backend",
	"mail-transport":  "mail.transport",
	"mail-queue":      "mail.queue",
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the explicitly set flags in fs. fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	cfg.applyEnv(os.Getenv)
	return &cfg, nil
}

// applyEnv fills secrets that neither the file nor the flags provided.
func (c *Config) applyEnv(getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(getenv(key))
		}
	}
	fill(&c.Database.URL, EnvDatabaseURL)
	fill(&c.Redis.URL, EnvRedisURL)
	fill(&c.Auth.JWTSecret, EnvJWTSecret)
	fill(&c.Mail.SMTP.Password, EnvSMTPPassword)
}
