// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, checks map[string]ReadinessCheck) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", checks, nil)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")

	metrics := server.Metrics()
	metrics.AuthOperation("login", "success")
	metrics.AuthOperation("login", "locked")
	metrics.AuthOperation("refresh", "reused")
	metrics.AuthOperation("mail_password_reset", "internal")
	metrics.AuthOperation("mail_verification", "success")
	RecordMailQueueFailure("decode")

	_, body = get(t, server, "/metrics")
	assert.Contains(t, body, `authcore_auth_operations_total{operation="login",outcome="success"} 1`)
	assert.Contains(t, body, `authcore_auth_operations_total{operation="login",outcome="locked"} 1`)
	assert.Contains(t, body, "authcore_login_lockouts_total 1")
	assert.Contains(t, body, "authcore_refresh_reuse_total 1")
	assert.Contains(t, body, `authcore_mail_failures_total{kind="password_reset"} 1`)
	assert.NotContains(t, body, `kind="verification"`)
	assert.Contains(t, body, `authcore_mail_queue_failures_total{reason="decode"}`)
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]ReadinessCheck
		status int
		body   string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all pass", map[string]ReadinessCheck{
			"postgres": func(context.Context) error { return nil },
		}, http.StatusOK, "ok"},
		{"dependency down", map[string]ReadinessCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		}, http.StatusServiceUnavailable, "not ready: redis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.checks)
			status, body := get(t, server, "/healthz/readiness")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx), "stop without start should not error")
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for serve error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(ctx)
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
