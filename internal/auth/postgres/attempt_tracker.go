// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// AttemptTracker implements auth.LoginAttemptTracker with one row per email
// in login_attempts. Failures are applied under a row lock, so concurrent
// failures from any number of service instances are all counted.
type AttemptTracker struct {
	pool   poolIface
	policy auth.LockoutPolicy
	now    func() time.Time
}

// NewAttemptTracker creates an AttemptTracker. A nil clock uses time.Now.
func NewAttemptTracker(pool poolIface, policy auth.LockoutPolicy, now func() time.Time) *AttemptTracker {
	if now == nil {
		now = time.Now
	}
	return &AttemptTracker{pool: pool, policy: policy, now: now}
}

// CheckAllowed returns the current state of email.
func (t *AttemptTracker) CheckAllowed(ctx context.Context, email string) (auth.AttemptState, error) {
	rec, err := scanAttempt(email, t.pool.QueryRow(ctx, `
		SELECT failures, first_failure_at, locked_until
		FROM login_attempts
		WHERE email = $1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.AttemptState{Status: auth.AttemptClear}, nil
	}
	if err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_CHECK_FAILED").
			With("operation", "load login attempts").
			Wrap(err)
	}
	return t.policy.State(rec, t.now()), nil
}

// RecordFailure counts one failure for email under a row lock.
func (t *AttemptTracker) RecordFailure(ctx context.Context, email string) (auth.AttemptState, error) {
	now := t.now()

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return auth.AttemptState{}, oops.Code("TX_BEGIN_FAILED").With("operation", "record login failure").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `
		INSERT INTO login_attempts (email, failures, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (email) DO NOTHING
	`, email, now); err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_RECORD_FAILED").
			With("operation", "ensure login attempt row").
			Wrap(err)
	}

	rec, err := scanAttempt(email, tx.QueryRow(ctx, `
		SELECT failures, first_failure_at, locked_until
		FROM login_attempts
		WHERE email = $1
		FOR UPDATE
	`, email))
	if err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_RECORD_FAILED").
			With("operation", "lock login attempt row").
			Wrap(err)
	}

	next := t.policy.ApplyFailure(email, rec, now)
	if _, err := tx.Exec(ctx, `
		UPDATE login_attempts
		SET failures = $2, first_failure_at = $3, locked_until = $4, updated_at = $5
		WHERE email = $1
	`, email, next.Failures, next.FirstFailureAt, next.LockedUntil, now); err != nil {
		return auth.AttemptState{}, oops.Code("ATTEMPT_RECORD_FAILED").
			With("operation", "update login attempt row").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.AttemptState{}, oops.Code("TX_COMMIT_FAILED").With("operation", "record login failure").Wrap(err)
	}
	return t.policy.State(next, now), nil
}

// RecordSuccess clears the counter for email.
func (t *AttemptTracker) RecordSuccess(ctx context.Context, email string) error {
	if _, err := t.pool.Exec(ctx, `DELETE FROM login_attempts WHERE email = $1`, email); err != nil {
		return oops.Code("ATTEMPT_RESET_FAILED").
			With("operation", "delete login attempt row").
			Wrap(err)
	}
	return nil
}

// PurgeStale deletes rows that can no longer affect any lockout decision.
func (t *AttemptTracker) PurgeStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := t.pool.Exec(ctx, `
		DELETE FROM login_attempts
		WHERE updated_at < $1 AND (locked_until IS NULL OR locked_until < $1)
	`, before)
	if err != nil {
		return 0, oops.Code("ATTEMPT_PURGE_FAILED").
			With("operation", "delete stale login attempts").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanAttempt(email string, row pgx.Row) (*auth.AttemptRecord, error) {
	var (
		failures    int
		firstFail   *time.Time
		lockedUntil *time.Time
	)
	if err := row.Scan(&failures, &firstFail, &lockedUntil); err != nil {
		return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
	}
	rec := &auth.AttemptRecord{Email: email, Failures: failures, LockedUntil: lockedUntil}
	if firstFail != nil {
		rec.FirstFailureAt = *firstFail
	}
	return rec, nil
}

// Compile-time interface check.
var _ auth.LoginAttemptTracker = (*AttemptTracker)(nil)
