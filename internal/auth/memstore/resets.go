// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// ResetTokens is an in-memory auth.ResetTokenRepository.
type ResetTokens struct {
	mu     sync.Mutex
	byHash map[string]*auth.ResetToken
}

// NewResetTokens creates an empty ResetTokens store.
func NewResetTokens() *ResetTokens {
	return &ResetTokens{byHash: make(map[string]*auth.ResetToken)}
}

// Create stores a copy of token.
func (r *ResetTokens) Create(_ context.Context, token *auth.ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byHash[token.SecretHash]; exists {
		return oops.Code("RESET_TOKEN_DUPLICATE_HASH").Errorf("token secret hash already stored")
	}
	stored := *token
	r.byHash[token.SecretHash] = &stored
	return nil
}

// Consume marks the matching token consumed and returns its owner.
func (r *ResetTokens) Consume(_ context.Context, secretHash string, purpose auth.Purpose, now time.Time) (ulid.ULID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[secretHash]
	if !ok || t.Purpose != purpose || !t.RedeemableAt(now) {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").With("purpose", purpose).Wrap(auth.ErrNotFound)
	}
	consumedAt := now
	t.Consumed = true
	t.ConsumedAt = &consumedAt
	return t.UserID, nil
}

// InvalidateOutstanding consumes every redeemable token of userID for purpose.
func (r *ResetTokens) InvalidateOutstanding(_ context.Context, userID ulid.ULID, purpose auth.Purpose, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, t := range r.byHash {
		if t.UserID == userID && t.Purpose == purpose && t.RedeemableAt(now) {
			consumedAt := now
			t.Consumed = true
			t.ConsumedAt = &consumedAt
			n++
		}
	}
	return n, nil
}

// PurgeExpired deletes tokens that expired before the cutoff.
func (r *ResetTokens) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.byHash {
		if t.ExpiresAt.Before(before) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

var _ auth.ResetTokenRepository = (*ResetTokens)(nil)
