// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// Sessions is an in-memory auth.SessionRepository.
type Sessions struct {
	mu     sync.Mutex
	byID   map[ulid.ULID]*auth.Session
	byHash map[string]ulid.ULID
	now    func() time.Time
}

// NewSessions creates an empty Sessions store. A nil clock uses time.Now.
func NewSessions(now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}
	return &Sessions{
		byID:   make(map[ulid.ULID]*auth.Session),
		byHash: make(map[string]ulid.ULID),
		now:    now,
	}
}

// Create stores a copy of session.
func (r *Sessions) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(session)
}

func (r *Sessions) insert(session *auth.Session) error {
	if _, exists := r.byHash[session.SecretHash]; exists {
		return oops.Code("SESSION_DUPLICATE_HASH").Errorf("session secret hash already stored")
	}
	stored := *session
	r.byID[session.ID] = &stored
	r.byHash[session.SecretHash] = session.ID
	return nil
}

// FindByHash returns a copy of the session with the given secret hash.
func (r *Sessions) FindByHash(_ context.Context, secretHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byHash[secretHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return copySession(r.byID[id]), nil
}

// Rotate revokes oldID and stores next under the store lock.
func (r *Sessions) Rotate(_ context.Context, oldID ulid.ULID, next *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[oldID]
	if !ok {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", oldID.String()).Wrap(auth.ErrNotFound)
	}
	now := r.now()
	if old.Revoked {
		r.revokeAllLocked(old.UserID, now)
		return oops.Code("SESSION_REUSED").
			With("session_id", oldID.String()).
			With("user_id", old.UserID.String()).
			Wrap(auth.ErrSessionReused)
	}

	if err := r.insert(next); err != nil {
		return err
	}
	old.Revoked = true
	old.RevokedAt = &now
	old.LastUsedAt = now
	replacedBy := next.ID
	old.ReplacedBy = &replacedBy
	return nil
}

// Revoke marks one session of ownerID revoked.
func (r *Sessions) Revoke(_ context.Context, id, ownerID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok || s.UserID != ownerID {
		return oops.Code("SESSION_NOT_FOUND").With("session_id", id.String()).Wrap(auth.ErrNotFound)
	}
	if !s.Revoked {
		now := r.now()
		s.Revoked = true
		s.RevokedAt = &now
	}
	return nil
}

// RevokeAll revokes every non-revoked session of userID.
func (r *Sessions) RevokeAll(_ context.Context, userID ulid.ULID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeAllLocked(userID, r.now()), nil
}

func (r *Sessions) revokeAllLocked(userID ulid.ULID, now time.Time) int64 {
	var n int64
	for _, s := range r.byID {
		if s.UserID == userID && !s.Revoked {
			s.Revoked = true
			revokedAt := now
			s.RevokedAt = &revokedAt
			n++
		}
	}
	return n
}

// ListActive returns the active sessions of userID, newest first.
func (r *Sessions) ListActive(_ context.Context, userID ulid.ULID, now time.Time) ([]*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*auth.Session
	for _, s := range r.byID {
		if s.UserID == userID && s.IsActiveAt(now) {
			out = append(out, copySession(s))
		}
	}
	slices.SortFunc(out, func(a, b *auth.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return out, nil
}

// PurgeExpired deletes sessions that expired before the cutoff.
func (r *Sessions) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if s.ExpiresAt.Before(before) {
			delete(r.byHash, s.SecretHash)
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

func copySession(s *auth.Session) *auth.Session {
	out := *s
	if s.RevokedAt != nil {
		at := *s.RevokedAt
		out.RevokedAt = &at
	}
	if s.ReplacedBy != nil {
		id := *s.ReplacedBy
		out.ReplacedBy = &id
	}
	return &out
}

var _ auth.SessionRepository = (*Sessions)(nil)
