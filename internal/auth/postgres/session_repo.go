// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, secret_hash, device_info, remember_me, created_at, expires_at, last_used_at, revoked, revoked_at, replaced_by`

const insertSessionSQL = `
	INSERT INTO sessions (id, user_id, secret_hash, device_info, remember_me, created_at, expires_at, last_used_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func insertSessionArgs(s *auth.Session) []any {
	return []any{
		s.ID.String(),
		s.UserID.String(),
		s.SecretHash,
		s.DeviceInfo,
		s.RememberMe,
		s.CreatedAt,
		s.ExpiresAt,
		s.LastUsedAt,
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	if _, err := r.pool.Exec(ctx, insertSessionSQL, insertSessionArgs(session)...); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// FindByHash retrieves a session by its secret hash, whatever its state.
func (r *SessionRepository) FindByHash(ctx context.Context, secretHash string) (*auth.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE secret_hash = $1
	`, secretHash)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_FIND_BY_HASH_FAILED").
			With("operation", "find session by hash").
			Wrap(err)
	}
	return session, nil
}

// Rotate inserts next and revokes oldID in one transaction. The revoke only
// matches a non-revoked row, so of two concurrent rotations of the same
// session exactly one commits. The loser revokes every session of the owner.
func (r *SessionRepository) Rotate(ctx context.Context, oldID ulid.ULID, next *auth.Session) error {
	rotatedAt := next.CreatedAt

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").With("operation", "rotate session").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, insertSessionSQL, insertSessionArgs(next)...); err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "insert rotated session").
			With("session_id", oldID.String()).
			Wrap(err)
	}

	result, err := tx.Exec(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = $2, last_used_at = $2, replaced_by = $3
		WHERE id = $1 AND user_id = $4 AND NOT revoked
	`, oldID.String(), rotatedAt, next.ID.String(), next.UserID.String())
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "revoke rotated session").
			With("session_id", oldID.String()).
			Wrap(err)
	}

	if result.RowsAffected() == 0 {
		_ = tx.Rollback(ctx) //nolint:errcheck // the insert is discarded either way
		return r.rotateConflict(ctx, oldID, next.UserID)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").
			With("operation", "rotate session").
			With("session_id", oldID.String()).
			Wrap(err)
	}
	return nil
}

// rotateConflict handles a rotation whose old session was not active.
func (r *SessionRepository) rotateConflict(ctx context.Context, oldID, userID ulid.ULID) error {
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM sessions WHERE id = $1`, oldID.String()).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID.String()) {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", oldID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "load rotated session").
			With("session_id", oldID.String()).
			Wrap(err)
	}

	if _, err := r.RevokeAll(ctx, userID); err != nil {
		return err
	}
	return oops.Code("SESSION_REUSED").
		With("session_id", oldID.String()).
		With("user_id", userID.String()).
		Wrap(auth.ErrSessionReused)
}

// Revoke marks one session of ownerID revoked.
func (r *SessionRepository) Revoke(ctx context.Context, id, ownerID ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = COALESCE(revoked_at, NOW())
		WHERE id = $1 AND user_id = $2
	`, id.String(), ownerID.String())
	if err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			With("session_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("session_id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// RevokeAll revokes every non-revoked session of a user.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID ulid.ULID) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET revoked = TRUE, revoked_at = NOW()
		WHERE user_id = $1 AND NOT revoked
	`, userID.String())
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "revoke all sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	// No ErrNotFound when nothing was revoked - that's a valid state
	return result.RowsAffected(), nil
}

// ListActive returns the active sessions of a user, newest first.
func (r *SessionRepository) ListActive(ctx context.Context, userID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND NOT revoked AND expires_at > $2
		ORDER BY created_at DESC, id DESC
	`, userID.String(), now)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list active sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// PurgeExpired deletes sessions that expired before the cutoff.
func (r *SessionRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanSession scans one row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func scanSession(row pgx.Row) (*auth.Session, error) {
	var (
		idStr      string
		userIDStr  string
		replacedBy *string
		s          auth.Session
	)
	err := row.Scan(&idStr, &userIDStr, &s.SecretHash, &s.DeviceInfo, &s.RememberMe,
		&s.CreatedAt, &s.ExpiresAt, &s.LastUsedAt, &s.Revoked, &s.RevokedAt, &replacedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	if s.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if s.UserID, err = ulid.Parse(userIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	if replacedBy != nil {
		next, err := ulid.Parse(*replacedBy)
		if err != nil {
			return nil, oops.Code("SESSION_INVALID_REPLACED_BY").With("replaced_by", *replacedBy).Wrap(err)
		}
		s.ReplacedBy = &next
	}
	return &s, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
