// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
)

// ListSessions returns the active sessions of the caller, newest first.
func (s *Service) ListSessions(ctx context.Context, p Principal) (_ []SessionSummary, err error) {
	defer func() { s.observe(OpListSessions, err) }()

	if !p.valid() {
		return nil, unauthorizedError()
	}
	sessions, err := s.sessions.ListActive(ctx, p.UserID, s.now())
	if err != nil {
		return nil, s.fail(ctx, "list sessions", err)
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, SessionSummary{
			ID:         session.ID,
			DeviceInfo: session.DeviceInfo,
			RememberMe: session.RememberMe,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
			ExpiresAt:  session.ExpiresAt,
			Current:    p.HasSession() && session.ID == p.SessionID,
		})
	}
	return out, nil
}

// RevokeSession revokes one of the caller's sessions. Sessions of other users
// are reported as not found.
func (s *Service) RevokeSession(ctx context.Context, p Principal, sessionID string) (_ *StatusResult, err error) {
	defer func() { s.observe(OpRevokeSession, err) }()

	if !p.valid() {
		return nil, unauthorizedError()
	}
	id, err := ulid.Parse(sessionID)
	if err != nil {
		return nil, notFoundError(MsgSessionNotFound)
	}
	if err := s.sessions.Revoke(ctx, id, p.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(MsgSessionNotFound)
		}
		return nil, s.fail(ctx, "revoke session", err)
	}
	return &StatusResult{Message: MsgSessionRevoked}, nil
}

// RevokeAllSessions revokes every session of the caller, including the current one.
func (s *Service) RevokeAllSessions(ctx context.Context, p Principal) (_ *StatusResult, err error) {
	defer func() { s.observe(OpRevokeAllSessions, err) }()

	if !p.valid() {
		return nil, unauthorizedError()
	}
	n, err := s.sessions.RevokeAll(ctx, p.UserID)
	if err != nil {
		return nil, s.fail(ctx, "revoke all sessions", err)
	}
	s.logger.InfoContext(ctx, "all sessions revoked", "user_id", p.UserID.String(), "revoked", n)
	return &StatusResult{Message: MsgAllSessionsRevoked}, nil
}
