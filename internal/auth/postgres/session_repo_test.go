// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
)

var sessionRowColumns = []string{
	"id", "user_id", "secret_hash", "device_info", "remember_me",
	"created_at", "expires_at", "last_used_at", "revoked", "revoked_at", "replaced_by",
}

func testSession(t *testing.T, userID ulid.ULID, now time.Time) *auth.Session {
	t.Helper()
	s, err := auth.NewSession(userID, auth.HashSecret(ulid.Make().String()), "cli", false, time.Hour, now)
	require.NoError(t, err)
	return s
}

func TestSessionRepository_FindByHash(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, userID, next := ulid.Make(), ulid.Make(), ulid.Make()
	nextStr := next.String()

	t.Run("scans rotated session", func(t *testing.T) {
		mock := newMockPool(t)
		revokedAt := now
		mock.ExpectQuery(`SELECT .+ FROM sessions\s+WHERE secret_hash = \$1`).
			WithArgs("h").
			WillReturnRows(pgxmock.NewRows(sessionRowColumns).
				AddRow(id.String(), userID.String(), "h", "cli", true, now, now.Add(time.Hour), now, true, &revokedAt, &nextStr))

		s, err := NewSessionRepository(mock).FindByHash(context.Background(), "h")
		require.NoError(t, err)
		assert.Equal(t, id, s.ID)
		assert.Equal(t, userID, s.UserID)
		require.NotNil(t, s.ReplacedBy)
		assert.Equal(t, next, *s.ReplacedBy)
		assert.True(t, s.WasRotated())
	})

	t.Run("scans active session", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM sessions`).
			WithArgs("h").
			WillReturnRows(pgxmock.NewRows(sessionRowColumns).
				AddRow(id.String(), userID.String(), "h", "", false, now, now.Add(time.Hour), now, false, (*time.Time)(nil), (*string)(nil)))

		s, err := NewSessionRepository(mock).FindByHash(context.Background(), "h")
		require.NoError(t, err)
		assert.Nil(t, s.ReplacedBy)
		assert.Nil(t, s.RevokedAt)
		assert.True(t, s.IsActiveAt(now))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM sessions`).
			WithArgs("h").
			WillReturnError(pgx.ErrNoRows)

		_, err := NewSessionRepository(mock).FindByHash(context.Background(), "h")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Rotate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()
	oldID := ulid.Make()

	t.Run("commits insert and revoke", func(t *testing.T) {
		mock := newMockPool(t)
		next := testSession(t, userID, now)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(next.ID.String(), userID.String(), next.SecretHash, "cli", false, now, next.ExpiresAt, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE sessions\s+SET revoked = TRUE, revoked_at = \$2, last_used_at = \$2, replaced_by = \$3`).
			WithArgs(oldID.String(), now, next.ID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, NewSessionRepository(mock).Rotate(context.Background(), oldID, next))
	})

	t.Run("already revoked session revokes the family", func(t *testing.T) {
		mock := newMockPool(t)
		next := testSession(t, userID, now)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(next.ID.String(), userID.String(), next.SecretHash, "cli", false, now, next.ExpiresAt, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE sessions\s+SET revoked = TRUE, revoked_at = \$2`).
			WithArgs(oldID.String(), now, next.ID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()
		mock.ExpectQuery(`SELECT user_id FROM sessions WHERE id = \$1`).
			WithArgs(oldID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(userID.String()))
		mock.ExpectExec(`UPDATE sessions\s+SET revoked = TRUE, revoked_at = NOW\(\)\s+WHERE user_id = \$1 AND NOT revoked`).
			WithArgs(userID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))

		err := NewSessionRepository(mock).Rotate(context.Background(), oldID, next)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrSessionReused)
		assert.Equal(t, "SESSION_REUSED", errCode(err))
	})

	t.Run("missing session is not found", func(t *testing.T) {
		mock := newMockPool(t)
		next := testSession(t, userID, now)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(next.ID.String(), userID.String(), next.SecretHash, "cli", false, now, next.ExpiresAt, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE sessions\s+SET revoked = TRUE, revoked_at = \$2`).
			WithArgs(oldID.String(), now, next.ID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()
		mock.ExpectQuery(`SELECT user_id FROM sessions`).
			WithArgs(oldID.String()).
			WillReturnError(pgx.ErrNoRows)

		err := NewSessionRepository(mock).Rotate(context.Background(), oldID, next)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		mock := newMockPool(t)
		next := testSession(t, userID, now)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(next.ID.String(), userID.String(), next.SecretHash, "cli", false, now, next.ExpiresAt, now).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := NewSessionRepository(mock).Rotate(context.Background(), oldID, next)
		require.Error(t, err)
		assert.Equal(t, "SESSION_ROTATE_FAILED", errCode(err))
		assert.ErrorContains(t, err, "disk full")
	})
}

func TestSessionRepository_Revoke(t *testing.T) {
	id, owner := ulid.Make(), ulid.Make()

	tests := []struct {
		name    string
		rows    int64
		wantErr error
	}{
		{name: "revokes owned session", rows: 1},
		{name: "foreign or missing session is not found", rows: 0, wantErr: auth.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			mock.ExpectExec(`UPDATE sessions\s+SET revoked = TRUE, revoked_at = COALESCE`).
				WithArgs(id.String(), owner.String()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.rows))

			err := NewSessionRepository(mock).Revoke(context.Background(), id, owner)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSessionRepository_ListActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()
	newer, older := ulid.Make(), ulid.Make()

	mock := newMockPool(t)
	mock.ExpectQuery(`SELECT .+ FROM sessions\s+WHERE user_id = \$1 AND NOT revoked AND expires_at > \$2\s+ORDER BY created_at DESC`).
		WithArgs(userID.String(), now).
		WillReturnRows(pgxmock.NewRows(sessionRowColumns).
			AddRow(newer.String(), userID.String(), "a", "phone", false, now, now.Add(time.Hour), now, false, (*time.Time)(nil), (*string)(nil)).
			AddRow(older.String(), userID.String(), "b", "laptop", true, now.Add(-time.Hour), now.Add(time.Hour), now, false, (*time.Time)(nil), (*string)(nil)))

	sessions, err := NewSessionRepository(mock).ListActive(context.Background(), userID, now)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer, sessions[0].ID)
	assert.Equal(t, older, sessions[1].ID)
}

func TestSessionRepository_PurgeExpired(t *testing.T) {
	before := time.Now()
	mock := newMockPool(t)
	mock.ExpectExec(`DELETE FROM sessions WHERE expires_at < \$1`).
		WithArgs(before).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := NewSessionRepository(mock).PurgeExpired(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
