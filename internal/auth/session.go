// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session TTL defaults.
const (
	DefaultAccessTokenTTL = time.Hour
	DefaultSessionTTL     = 24 * time.Hour
	DefaultRememberMeTTL  = 30 * 24 * time.Hour

	// MaxDeviceInfoLength bounds the opaque client description stored per session.
	MaxDeviceInfoLength = 512
)

// Session is the durable record behind one refresh token.
// Sessions are never deleted by the service, only revoked.
type Session struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	SecretHash string
	DeviceInfo string
	RememberMe bool
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
	Revoked    bool
	RevokedAt  *time.Time
	ReplacedBy *ulid.ULID // session that superseded this one on rotation
}

// NewSession creates a validated, non-revoked Session expiring ttl after now.
func NewSession(userID ulid.ULID, secretHash, deviceInfo string, rememberMe bool, ttl time.Duration, now time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if secretHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("secret hash cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").With("ttl", ttl).Errorf("session ttl must be positive")
	}
	if len(deviceInfo) > MaxDeviceInfoLength {
		deviceInfo = deviceInfo[:MaxDeviceInfoLength]
	}

	return &Session{
		ID:         ulid.Make(),
		UserID:     userID,
		SecretHash: secretHash,
		DeviceInfo: deviceInfo,
		RememberMe: rememberMe,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
		LastUsedAt: now,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// IsActiveAt reports whether the session can still redeem its refresh secret at t.
func (s *Session) IsActiveAt(t time.Time) bool {
	return !s.Revoked && !s.IsExpiredAt(t)
}

// WasRotated reports whether the session was revoked by a refresh rotation.
// Presenting the secret of a rotated session is treated as token theft.
func (s *Session) WasRotated() bool {
	return s.Revoked && s.ReplacedBy != nil
}

// SessionRepository is the durable session store.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// FindByHash retrieves a session by the hash of its refresh secret,
	// including revoked and expired sessions.
	FindByHash(ctx context.Context, secretHash string) (*Session, error)

	// Rotate revokes oldID, links it to next, and stores next in one transaction.
	// If oldID is no longer active when the transaction runs, every session of
	// its owner is revoked and ErrSessionReused is returned.
	Rotate(ctx context.Context, oldID ulid.ULID, next *Session) error

	// Revoke marks one session revoked. Returns ErrNotFound if the session does
	// not exist or belongs to another user. Revoking an already revoked session
	// succeeds.
	Revoke(ctx context.Context, id, ownerID ulid.ULID) error

	// RevokeAll revokes every non-revoked session of a user and returns the count.
	RevokeAll(ctx context.Context, userID ulid.ULID) (int64, error)

	// ListActive returns the sessions of a user that are neither revoked nor
	// expired at now, most recently created first.
	ListActive(ctx context.Context, userID ulid.ULID, now time.Time) ([]*Session, error)

	// PurgeExpired deletes sessions that expired before the cutoff and returns the count.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
