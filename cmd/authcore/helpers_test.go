// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/config"
)

// testSecret is long enough for the HS256 signing key check.
const testSecret = "0123456789abcdef0123456789abcdef"

// newTestRoot mounts sub under a root carrying the global flags, with the
// environment fallbacks cleared.
func newTestRoot(t *testing.T, sub *cobra.Command) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	for _, key := range []string{config.EnvDatabaseURL, config.EnvRedisURL, config.EnvJWTSecret, config.EnvSMTPPassword} {
		t.Setenv(key, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	root := &cobra.Command{Use: "authcore", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(sub)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	return root, buf
}

// validConfig returns a configuration that passes Validate.
func validConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.URL = "postgres://authcore@localhost:5432/authcore?sslmode=disable"
	cfg.Auth.JWTSecret = testSecret
	cfg.Log.Level = "error"
	return &cfg
}
