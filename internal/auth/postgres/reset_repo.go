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

// ResetTokenRepository implements auth.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool poolIface
}

// NewResetTokenRepository creates a new ResetTokenRepository.
func NewResetTokenRepository(pool poolIface) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

// Create stores a new token.
func (r *ResetTokenRepository) Create(ctx context.Context, token *auth.ResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reset_tokens (id, user_id, purpose, secret_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		token.ID.String(),
		token.UserID.String(),
		string(token.Purpose),
		token.SecretHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_TOKEN_CREATE_FAILED").
			With("operation", "insert reset token").
			With("user_id", token.UserID.String()).
			With("purpose", string(token.Purpose)).
			Wrap(err)
	}
	return nil
}

// Consume marks a redeemable token consumed and returns its owner in a single
// statement, so a token can be spent at most once.
func (r *ResetTokenRepository) Consume(ctx context.Context, secretHash string, purpose auth.Purpose, now time.Time) (ulid.ULID, error) {
	var userIDStr string
	err := r.pool.QueryRow(ctx, `
		UPDATE reset_tokens
		SET consumed = TRUE, consumed_at = $3
		WHERE secret_hash = $1 AND purpose = $2 AND NOT consumed AND expires_at > $3
		RETURNING user_id
	`, secretHash, string(purpose), now).Scan(&userIDStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").
			With("purpose", string(purpose)).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_CONSUME_FAILED").
			With("operation", "consume reset token").
			With("purpose", string(purpose)).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}
	return userID, nil
}

// InvalidateOutstanding consumes every redeemable token of a user for purpose.
func (r *ResetTokenRepository) InvalidateOutstanding(ctx context.Context, userID ulid.ULID, purpose auth.Purpose, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE reset_tokens
		SET consumed = TRUE, consumed_at = $3
		WHERE user_id = $1 AND purpose = $2 AND NOT consumed AND expires_at > $3
	`, userID.String(), string(purpose), now)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_INVALIDATE_FAILED").
			With("operation", "invalidate outstanding tokens").
			With("user_id", userID.String()).
			With("purpose", string(purpose)).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// PurgeExpired deletes tokens that expired before the cutoff.
func (r *ResetTokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM reset_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_PURGE_FAILED").
			With("operation", "delete expired reset tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.ResetTokenRepository = (*ResetTokenRepository)(nil)
