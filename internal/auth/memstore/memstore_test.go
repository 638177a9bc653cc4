// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/memstore"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return epoch }

func newSession(t *testing.T, userID ulid.ULID, hash string, ttl time.Duration) *auth.Session {
	t.Helper()
	s, err := auth.NewSession(userID, hash, "", false, ttl, epoch)
	require.NoError(t, err)
	return s
}

func TestUsers_CaseInsensitiveEmail(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	u, err := auth.NewUser("alice@example.com", "hash", "Alice", auth.RoleViewer, epoch)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, u))

	dup, err := auth.NewUser("ALICE@example.com", "hash", "Other", auth.RoleViewer, epoch)
	require.NoError(t, err)
	assert.ErrorIs(t, users.Create(ctx, dup), auth.ErrDuplicateEmail)

	got, err := users.GetByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = users.GetByID(ctx, ulid.Make())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestUsers_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	u, err := auth.NewUser("alice@example.com", "hash", "Alice", auth.RoleViewer, epoch)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, u))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.PasswordHash = "mutated"

	again, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash", again.PasswordHash)

	require.NoError(t, users.MarkVerified(ctx, u.ID, epoch.Add(time.Minute)))
	again, err = users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, again.EmailVerified)
}

func TestUsers_DeleteFreesEmail(t *testing.T) {
	ctx := context.Background()
	users := memstore.NewUsers()
	u, err := auth.NewUser("alice@example.com", "hash", "Alice", auth.RoleViewer, epoch)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, u))

	require.NoError(t, users.Delete(ctx, u.ID))
	_, err = users.GetByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.ErrorIs(t, users.Delete(ctx, u.ID), auth.ErrNotFound)

	again, err := auth.NewUser("alice@example.com", "hash", "Alice", auth.RoleViewer, epoch)
	require.NoError(t, err)
	require.NoError(t, users.Create(ctx, again))
}

func TestSessions_RotateThenReuse(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSessions(fixedClock)
	userID := ulid.Make()
	first := newSession(t, userID, "h1", time.Hour)
	other := newSession(t, userID, "h-other", time.Hour)
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, other))

	second := newSession(t, userID, "h2", time.Hour)
	require.NoError(t, store.Rotate(ctx, first.ID, second))

	old, err := store.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, old.WasRotated())
	assert.Equal(t, second.ID, *old.ReplacedBy)

	err = store.Rotate(ctx, first.ID, newSession(t, userID, "h3", time.Hour))
	assert.ErrorIs(t, err, auth.ErrSessionReused)

	active, err := store.ListActive(ctx, userID, epoch)
	require.NoError(t, err)
	assert.Empty(t, active, "reuse revokes every session of the owner")

	_, err = store.FindByHash(ctx, "h3")
	assert.ErrorIs(t, err, auth.ErrNotFound, "the replacement from a reused rotation is not stored")
}

func TestSessions_RevokeIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSessions(fixedClock)
	s := newSession(t, ulid.Make(), "h1", time.Hour)
	require.NoError(t, store.Create(ctx, s))

	assert.ErrorIs(t, store.Revoke(ctx, s.ID, ulid.Make()), auth.ErrNotFound)
	require.NoError(t, store.Revoke(ctx, s.ID, s.UserID))
	require.NoError(t, store.Revoke(ctx, s.ID, s.UserID), "revoking twice is fine")

	n, err := store.RevokeAll(ctx, s.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessions_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewSessions(fixedClock)
	userID := ulid.Make()
	short := newSession(t, userID, "short", time.Minute)
	long := newSession(t, userID, "long", 24*time.Hour)
	require.NoError(t, store.Create(ctx, short))
	require.NoError(t, store.Create(ctx, long))

	n, err := store.PurgeExpired(ctx, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.FindByHash(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = store.FindByHash(ctx, "long")
	assert.NoError(t, err)
}

func TestAttempts_LockAndReset(t *testing.T) {
	ctx := context.Background()
	now := epoch
	policy := auth.DefaultLockoutPolicy()
	tracker := memstore.NewAttempts(policy, func() time.Time { return now })

	var state auth.AttemptState
	var err error
	for range policy.Threshold {
		state, err = tracker.RecordFailure(ctx, "alice@example.com")
		require.NoError(t, err)
	}
	assert.True(t, state.Locked())

	state, err = tracker.CheckAllowed(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, state.Locked(), "lockout is per email")

	now = now.Add(policy.Cooldown)
	state, err = tracker.CheckAllowed(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, state.Locked())

	require.NoError(t, tracker.RecordSuccess(ctx, "alice@example.com"))
	assert.Nil(t, tracker.Record("alice@example.com"))
}

func TestOutbox_Wait(t *testing.T) {
	outbox := memstore.NewOutbox()
	user := auth.UserSummary{ID: ulid.Make(), Email: "alice@example.com"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := outbox.Wait(ctx, memstore.KindReset, user.Email)
	require.Error(t, err)

	require.NoError(t, outbox.SendResetEmail(context.Background(), user, "secret", time.Hour))
	msg, err := outbox.Wait(context.Background(), memstore.KindReset, user.Email)
	require.NoError(t, err)
	assert.Equal(t, "secret", msg.Token)
	assert.Equal(t, time.Hour, msg.ExpiresIn)
}
