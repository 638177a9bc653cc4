// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token TTL defaults.
const (
	DefaultResetTokenTTL  = time.Hour
	DefaultVerifyTokenTTL = 24 * time.Hour
)

// Purpose tells which flow a ResetToken belongs to.
type Purpose string

// Token purposes.
const (
	PurposePasswordReset Purpose = "PASSWORD_RESET"
	PurposeEmailVerify   Purpose = "EMAIL_VERIFY"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailVerify
}

// ResetToken is a single-use, time-boxed token for password reset or email verification.
type ResetToken struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	Purpose    Purpose
	SecretHash string
	ExpiresAt  time.Time
	Consumed   bool
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// IsExpiredAt returns true if the token would be expired at the given time.
func (r *ResetToken) IsExpiredAt(t time.Time) bool {
	return !t.Before(r.ExpiresAt)
}

// RedeemableAt reports whether the token could still be consumed at t.
func (r *ResetToken) RedeemableAt(t time.Time) bool {
	return !r.Consumed && !r.IsExpiredAt(t)
}

// ResetTokenRepository manages reset token persistence.
type ResetTokenRepository interface {
	// Create stores a new token.
	Create(ctx context.Context, token *ResetToken) error

	// Consume marks the token with the given hash and purpose consumed, provided it
	// is unconsumed and unexpired at now, and returns its owner. The check and the
	// update are a single atomic step. Returns ErrNotFound when no token qualifies.
	Consume(ctx context.Context, secretHash string, purpose Purpose, now time.Time) (ulid.ULID, error)

	// InvalidateOutstanding consumes every redeemable token of a user for purpose
	// and returns the count.
	InvalidateOutstanding(ctx context.Context, userID ulid.ULID, purpose Purpose, now time.Time) (int64, error)

	// PurgeExpired deletes tokens that expired before the cutoff and returns the count.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// ResetTokenStore issues and redeems single-use tokens on top of a ResetTokenRepository.
type ResetTokenStore struct {
	repo ResetTokenRepository
	now  func() time.Time
}

// NewResetTokenStore creates a ResetTokenStore. A nil clock uses time.Now.
func NewResetTokenStore(repo ResetTokenRepository, now func() time.Time) (*ResetTokenStore, error) {
	if repo == nil {
		return nil, oops.Code("RESET_STORE_INVALID").Errorf("reset token repository is required")
	}
	if now == nil {
		now = time.Now
	}
	return &ResetTokenStore{repo: repo, now: now}, nil
}

// Issue creates a token for userID valid for ttl. The plaintext secret is
// returned once; only its hash is stored.
func (s *ResetTokenStore) Issue(ctx context.Context, userID ulid.ULID, purpose Purpose, ttl time.Duration) (string, *ResetToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return "", nil, oops.Code("RESET_TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if !purpose.Valid() {
		return "", nil, oops.Code("RESET_TOKEN_INVALID_PURPOSE").With("purpose", purpose).Errorf("unknown token purpose")
	}
	if ttl <= 0 {
		return "", nil, oops.Code("RESET_TOKEN_INVALID_EXPIRY").With("ttl", ttl).Errorf("token ttl must be positive")
	}

	secret, hash, err := GenerateSecret()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	token := &ResetToken{
		ID:         ulid.Make(),
		UserID:     userID,
		Purpose:    purpose,
		SecretHash: hash,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return "", nil, oops.Code("RESET_TOKEN_CREATE_FAILED").
			With("user_id", userID.String()).
			With("purpose", purpose).
			Wrap(err)
	}
	return secret, token, nil
}

// Consume redeems a secret for purpose and returns the owning user ID.
// Unknown, expired, consumed, and wrong-purpose secrets all return ErrNotFound.
func (s *ResetTokenStore) Consume(ctx context.Context, secret string, purpose Purpose) (ulid.ULID, error) {
	if secret == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").With("purpose", purpose).Wrap(ErrNotFound)
	}
	userID, err := s.repo.Consume(ctx, HashSecret(secret), purpose, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.With("purpose", purpose).Wrap(err)
		}
		return ulid.ULID{}, oops.Code("RESET_TOKEN_CONSUME_FAILED").With("purpose", purpose).Wrap(err)
	}
	return userID, nil
}

// InvalidateOutstanding consumes every remaining token of a user for purpose.
func (s *ResetTokenStore) InvalidateOutstanding(ctx context.Context, userID ulid.ULID, purpose Purpose) (int64, error) {
	n, err := s.repo.InvalidateOutstanding(ctx, userID, purpose, s.now())
	if err != nil {
		return 0, oops.Code("RESET_TOKEN_INVALIDATE_FAILED").
			With("user_id", userID.String()).
			With("purpose", purpose).
			Wrap(err)
	}
	return n, nil
}
