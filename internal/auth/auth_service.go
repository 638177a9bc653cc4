// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// RegisterInput is the input of Register.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
	Role            Role // empty means RoleViewer
	DeviceInfo      string
}

// LoginInput is the input of Login.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	DeviceInfo string
}

// Register creates an unverified user, starts its first session, and sends a
// verification email without waiting for delivery.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	defer func() { s.observe(OpRegister, err) }()

	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if !s.policy.Allows(email) {
		return nil, validationError(MsgEmailNotPermitted)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, validationError(MsgPasswordMismatch)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	role, err := ParseRole(string(in.Role))
	if err != nil {
		return nil, err
	}
	if !slices.Contains(s.cfg.SelfAssignableRoles, role) {
		return nil, validationError(MsgRoleNotPermitted)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.fail(ctx, "hash password", err)
	}
	user, err := NewUser(email, hash, displayName, role, s.now())
	if err != nil {
		return nil, s.fail(ctx, "build user", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, conflictError(MsgEmailTaken)
		}
		return nil, s.fail(ctx, "create user", err)
	}

	_, pair, err := s.newSession(ctx, user, in.DeviceInfo, false)
	if err != nil {
		s.discardUser(ctx, user)
		return nil, s.fail(ctx, "create session", err)
	}

	s.issueAndSend(ctx, user, PurposeEmailVerify)

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String(), "role", string(user.Role))
	return &AuthResult{User: user.Summary(), Tokens: pair}, nil
}

// discardUser removes a user whose registration could not complete, so the
// email can be registered again.
func (s *Service) discardUser(ctx context.Context, user *User) {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "discard incomplete registration failed",
			"user_id", user.ID.String(),
			"error", err,
		)
	}
}

// Login verifies credentials and starts a session. A locked email is rejected
// before any credential check. Unknown emails and wrong passwords produce the
// same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ *AuthResult, err error) {
	defer func() { s.observe(OpLogin, err) }()

	email := NormalizeEmail(in.Email)
	if email == "" {
		return nil, validationError(MsgEmailRequired)
	}
	if in.Password == "" {
		return nil, validationError(MsgPasswordRequired)
	}

	state, err := s.attempts.CheckAllowed(ctx, email)
	if err != nil {
		return nil, s.fail(ctx, "check login attempts", err)
	}
	if state.Locked() {
		return nil, lockedOutError(state)
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)
	var targetHash string
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
	case errors.Is(lookupErr, ErrNotFound):
		user = nil
		targetHash = s.dummy()
	default:
		return nil, s.fail(ctx, "get user by email", lookupErr)
	}

	// Always verify so unknown emails take as long as known ones.
	valid, verifyErr := s.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil {
		if user != nil {
			return nil, s.fail(ctx, "verify password", verifyErr)
		}
		valid = false
	}

	if user == nil || !valid {
		after, err := s.attempts.RecordFailure(ctx, email)
		if err != nil {
			return nil, s.fail(ctx, "record login failure", err)
		}
		if after.Locked() {
			s.logger.WarnContext(ctx, "login locked after repeated failures",
				"failures", after.Failures,
				"locked_until", after.LockedUntil,
			)
		}
		return nil, invalidCredentialsError()
	}

	if err := s.attempts.RecordSuccess(ctx, email); err != nil {
		return nil, s.fail(ctx, "reset login attempts", err)
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, in.Password)
	}

	_, pair, err := s.newSession(ctx, user, in.DeviceInfo, in.RememberMe)
	if err != nil {
		return nil, s.fail(ctx, "create session", err)
	}
	return &AuthResult{User: user.Summary(), Tokens: pair}, nil
}

// rehash upgrades a stored digest to the current hasher parameters. Login
// succeeds whether or not the upgrade does.
func (s *Service) rehash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, hash, s.now())
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = hash
}

// Logout revokes the session the access token was issued for. A principal
// without a session, or whose session is already gone, logs out as a no-op.
func (s *Service) Logout(ctx context.Context, p Principal) (_ *StatusResult, err error) {
	defer func() { s.observe(OpLogout, err) }()

	if !p.valid() {
		return nil, unauthorizedError()
	}
	if p.HasSession() {
		if err := s.sessions.Revoke(ctx, p.SessionID, p.UserID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, s.fail(ctx, "revoke session", err)
		}
	}
	return &StatusResult{Message: MsgLoggedOut}, nil
}

// Refresh redeems a refresh secret for a new token pair. The presented secret
// is invalidated by rotation. Presenting a secret that was already rotated
// revokes every session of its owner.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (_ *AuthResult, err error) {
	defer func() { s.observe(OpRefresh, err) }()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, validationError(MsgRefreshRequired)
	}

	session, err := s.sessions.FindByHash(ctx, HashSecret(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidCredentialsError()
		}
		return nil, s.fail(ctx, "find session", err)
	}

	now := s.now()
	if session.WasRotated() {
		s.revokeAfterReuse(ctx, session)
		return nil, reusedSessionError(session.ID.String())
	}
	if !session.IsActiveAt(now) {
		return nil, invalidCredentialsError()
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidCredentialsError()
		}
		return nil, s.fail(ctx, "get session user", err)
	}

	secret, hash, err := s.tokens.IssueRefreshSecret()
	if err != nil {
		return nil, s.fail(ctx, "issue refresh secret", err)
	}
	next, err := NewSession(user.ID, hash, session.DeviceInfo, session.RememberMe, s.sessionTTL(session.RememberMe), now)
	if err != nil {
		return nil, s.fail(ctx, "build session", err)
	}

	if err := s.sessions.Rotate(ctx, session.ID, next); err != nil {
		switch {
		case errors.Is(err, ErrSessionReused):
			s.logger.WarnContext(ctx, "concurrent refresh token reuse",
				"user_id", user.ID.String(),
				"session_id", session.ID.String(),
			)
			return nil, reusedSessionError(session.ID.String())
		case errors.Is(err, ErrNotFound):
			return nil, invalidCredentialsError()
		default:
			return nil, s.fail(ctx, "rotate session", err)
		}
	}

	pair, err := s.tokenPair(user, next, secret)
	if err != nil {
		return nil, s.fail(ctx, "issue access token", err)
	}
	return &AuthResult{User: user.Summary(), Tokens: pair}, nil
}

func (s *Service) revokeAfterReuse(ctx context.Context, session *Session) {
	n, err := s.sessions.RevokeAll(ctx, session.UserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "revoke sessions after refresh reuse failed",
			"user_id", session.UserID.String(),
			"error", err,
		)
		return
	}
	s.logger.WarnContext(ctx, "refresh token reuse, all sessions revoked",
		"user_id", session.UserID.String(),
		"session_id", session.ID.String(),
		"revoked", n,
	)
}

// Authenticate verifies an access token and returns the caller it identifies.
// It does not consult storage.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (_ Principal, err error) {
	defer func() { s.observe(OpAuthenticate, err) }()

	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		s.logger.DebugContext(ctx, "access token rejected", "error", err)
		return Principal{}, unauthorizedError()
	}
	return claims.Principal(), nil
}
