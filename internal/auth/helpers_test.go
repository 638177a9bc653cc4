// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/memstore"
)

// newTestHasher returns an argon2id hasher cheap enough for unit tests.
func newTestHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{
		Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32,
	})
	require.NoError(t, err)
	return h
}

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

// testClock is a settable clock shared by the service and its stores.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingObserver captures reported outcomes as "op:outcome".
type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) AuthOperation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, fmt.Sprintf("%s:%s", op, outcome))
}

func (o *recordingObserver) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

// memEnv is a Service wired to the in-memory stores.
type memEnv struct {
	svc      *auth.Service
	clock    *testClock
	users    *memstore.Users
	sessions *memstore.Sessions
	attempts *memstore.Attempts
	outbox   *memstore.Outbox
	observer *recordingObserver
}

func newMemEnv(t *testing.T, mutate ...func(*auth.ServiceConfig)) *memEnv {
	t.Helper()
	clock := newTestClock()
	env := &memEnv{
		clock:    clock,
		users:    memstore.NewUsers(),
		sessions: memstore.NewSessions(clock.Now),
		attempts: memstore.NewAttempts(auth.DefaultLockoutPolicy(), clock.Now),
		outbox:   memstore.NewOutbox(),
		observer: &recordingObserver{},
	}
	codec, err := auth.NewJWTCodec(testSigningKey, "authcore-test", auth.WithJWTClock(clock.Now))
	require.NoError(t, err)

	cfg := auth.DefaultServiceConfig()
	cfg.Now = clock.Now
	for _, m := range mutate {
		m(&cfg)
	}
	env.svc, err = auth.NewService(cfg, auth.ServiceDeps{
		Users:       env.users,
		Sessions:    env.sessions,
		ResetTokens: memstore.NewResetTokens(),
		Attempts:    env.attempts,
		Hasher:      newTestHasher(t),
		Tokens:      codec,
		Mailer:      env.outbox,
		Observer:    env.observer,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.svc.Close(ctx)
	})
	return env
}

// register creates a user through the service and returns the result.
func (e *memEnv) register(t *testing.T, email, password string) *auth.AuthResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), auth.RegisterInput{
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		DisplayName:     "Test User",
	})
	require.NoError(t, err)
	return res
}

// waitMail blocks until the outbox holds a message of kind for email.
func (e *memEnv) waitMail(t *testing.T, kind, email string) memstore.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := e.outbox.Wait(ctx, kind, email)
	require.NoError(t, err, "no %s mail for %s", kind, email)
	return msg
}

// mailCount returns how many messages of kind were sent to email.
func (e *memEnv) mailCount(kind, email string) int {
	n := 0
	for _, m := range e.outbox.Messages() {
		if m.Kind == kind && m.To == email {
			n++
		}
	}
	return n
}
