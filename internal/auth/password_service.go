// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"
)

// ResetPasswordInput is the input of ResetPassword.
type ResetPasswordInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// ChangePasswordInput is the input of ChangePassword.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// ForgotPassword sends a password reset link if the email belongs to a user.
// The result is the same whether or not it does.
func (s *Service) ForgotPassword(ctx context.Context, email string) (_ *StatusResult, err error) {
	defer func() { s.observe(OpForgotPassword, err) }()

	user, err := s.lookupForMail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		s.issueAndSend(ctx, user, PurposePasswordReset)
	}
	return &StatusResult{Message: MsgResetRequested}, nil
}

// lookupForMail finds the user for an anti-enumeration flow. A nil user with a
// nil error means no mail should be sent. Only malformed input is an error.
func (s *Service) lookupForMail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "user lookup for mail flow failed", "error", err)
		}
		return nil, nil
	}
	return user, nil
}

// ResetPassword redeems a PASSWORD_RESET token, sets the new password, and
// revokes every session of the user.
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) (_ *StatusResult, err error) {
	defer func() { s.observe(OpResetPassword, err) }()

	token := strings.TrimSpace(in.Token)
	if token == "" {
		return nil, validationError(MsgInvalidToken)
	}
	if err := ValidatePassword(in.NewPassword); err != nil {
		return nil, err
	}
	if in.NewPassword != in.ConfirmPassword {
		return nil, validationError(MsgPasswordMismatch)
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, s.fail(ctx, "hash password", err)
	}

	userID, err := s.resets.Consume(ctx, token, PurposePasswordReset)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationError(MsgInvalidToken)
		}
		return nil, s.fail(ctx, "consume reset token", err)
	}

	now := s.now()
	if err := s.users.UpdatePassword(ctx, userID, hash, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationError(MsgInvalidToken)
		}
		return nil, s.fail(ctx, "update password", err)
	}
	revoked, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "revoke sessions", err)
	}

	if _, err := s.resets.InvalidateOutstanding(ctx, userID, PurposePasswordReset); err != nil {
		s.logger.WarnContext(ctx, "invalidate sibling reset tokens failed", "user_id", userID.String(), "error", err)
	}
	// Receiving the reset link proves ownership of the inbox.
	if err := s.users.MarkVerified(ctx, userID, now); err != nil {
		s.logger.WarnContext(ctx, "mark verified after reset failed", "user_id", userID.String(), "error", err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID.String(), "sessions_revoked", revoked)
	return &StatusResult{Message: MsgPasswordReset}, nil
}

// ChangePassword replaces the password of the authenticated caller after
// checking the current one. Other sessions stay active unless the service is
// configured with RevokeSessionsOnPasswordChange.
func (s *Service) ChangePassword(ctx context.Context, p Principal, in ChangePasswordInput) (_ *StatusResult, err error) {
	defer func() { s.observe(OpChangePassword, err) }()

	if !p.valid() {
		return nil, unauthorizedError()
	}
	if in.CurrentPassword == "" {
		return nil, validationError(MsgPasswordRequired)
	}
	if err := ValidatePassword(in.NewPassword); err != nil {
		return nil, err
	}
	if in.NewPassword != in.ConfirmPassword {
		return nil, validationError(MsgPasswordMismatch)
	}
	if in.NewPassword == in.CurrentPassword {
		return nil, validationError(MsgPasswordUnchanged)
	}

	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(MsgUserNotFound)
		}
		return nil, s.fail(ctx, "get user", err)
	}
	ok, err := s.hasher.Verify(in.CurrentPassword, user.PasswordHash)
	if err != nil {
		return nil, s.fail(ctx, "verify password", err)
	}
	if !ok {
		return nil, validationError(MsgCurrentPasswordBad)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, s.fail(ctx, "hash password", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFoundError(MsgUserNotFound)
		}
		return nil, s.fail(ctx, "update password", err)
	}

	if s.cfg.RevokeSessionsOnPasswordChange {
		if err := s.revokeOtherSessions(ctx, p); err != nil {
			return nil, s.fail(ctx, "revoke other sessions", err)
		}
	}
	return &StatusResult{Message: MsgPasswordChanged}, nil
}

// revokeOtherSessions revokes every active session of p except its own.
func (s *Service) revokeOtherSessions(ctx context.Context, p Principal) error {
	if !p.HasSession() {
		_, err := s.sessions.RevokeAll(ctx, p.UserID)
		return err
	}
	active, err := s.sessions.ListActive(ctx, p.UserID, s.now())
	if err != nil {
		return err
	}
	for _, session := range active {
		if session.ID == p.SessionID {
			continue
		}
		if err := s.sessions.Revoke(ctx, session.ID, p.UserID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}
