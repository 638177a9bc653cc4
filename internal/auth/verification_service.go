// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"strings"
)

// VerifyEmail redeems an EMAIL_VERIFY token and marks its user verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (_ *StatusResult, err error) {
	defer func() { s.observe(OpVerifyEmail, err) }()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationError(MsgInvalidToken)
	}

	userID, err := s.resets.Consume(ctx, token, PurposeEmailVerify)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationError(MsgInvalidToken)
		}
		return nil, s.fail(ctx, "consume verification token", err)
	}
	if err := s.users.MarkVerified(ctx, userID, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, validationError(MsgInvalidToken)
		}
		return nil, s.fail(ctx, "mark verified", err)
	}
	if _, err := s.resets.InvalidateOutstanding(ctx, userID, PurposeEmailVerify); err != nil {
		s.logger.WarnContext(ctx, "invalidate sibling verification tokens failed", "user_id", userID.String(), "error", err)
	}
	return &StatusResult{Message: MsgEmailVerified}, nil
}

// ResendVerification sends a new verification link if the email belongs to an
// unverified user. The result is the same in every case.
func (s *Service) ResendVerification(ctx context.Context, email string) (_ *StatusResult, err error) {
	defer func() { s.observe(OpResendVerification, err) }()

	user, err := s.lookupForMail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil && !user.EmailVerified {
		s.issueAndSend(ctx, user, PurposeEmailVerify)
	}
	return &StatusResult{Message: MsgVerificationResent}, nil
}
