// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/pkg/errutil"
)

func TestResetPassword_ValidatesBeforeConsuming(t *testing.T) {
	tests := []struct {
		name string
		in   auth.ResetPasswordInput
		msg  string
	}{
		{"missing token", auth.ResetPasswordInput{NewPassword: "new-password", ConfirmPassword: "new-password"}, auth.MsgInvalidToken},
		{"mismatch", auth.ResetPasswordInput{Token: "t", NewPassword: "new-password", ConfirmPassword: "new-passw0rd"}, auth.MsgPasswordMismatch},
		{"short", auth.ResetPasswordInput{Token: "t", NewPassword: "short", ConfirmPassword: "short"}, "Password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newMockEnv(t, nil)
			_, err := env.svc.ResetPassword(context.Background(), tt.in)
			errutil.AssertPublicError(t, err, auth.CodeValidation, tt.msg)
			env.resets.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestResetPassword_InvalidToken(t *testing.T) {
	env := newMockEnv(t, nil)
	env.hasher.On("Hash", "new-password").Return("digest", nil)
	env.resets.On("Consume", mock.Anything, auth.HashSecret("stale"), auth.PurposePasswordReset, env.clock.Now()).
		Return(ulid.ULID{}, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound))

	_, err := env.svc.ResetPassword(context.Background(), auth.ResetPasswordInput{
		Token: "stale", NewPassword: "new-password", ConfirmPassword: "new-password",
	})
	errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgInvalidToken)
	env.users.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetPassword_RevokesSessions(t *testing.T) {
	env := newMockEnv(t, nil)
	userID := ulid.Make()
	now := env.clock.Now()
	env.hasher.On("Hash", "new-password").Return("digest", nil)
	env.resets.On("Consume", mock.Anything, auth.HashSecret("fresh"), auth.PurposePasswordReset, now).Return(userID, nil)
	env.users.On("UpdatePassword", mock.Anything, userID, "digest", now).Return(nil)
	env.sessions.On("RevokeAll", mock.Anything, userID).Return(int64(3), nil)
	env.resets.On("InvalidateOutstanding", mock.Anything, userID, auth.PurposePasswordReset, now).Return(int64(0), nil)
	env.users.On("MarkVerified", mock.Anything, userID, now).Return(errors.New("ignored"))

	res, err := env.svc.ResetPassword(context.Background(), auth.ResetPasswordInput{
		Token: "fresh", NewPassword: "new-password", ConfirmPassword: "new-password",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.MsgPasswordReset, res.Message)
}

func TestResetPassword_RevokeFailureIsInternal(t *testing.T) {
	env := newMockEnv(t, nil)
	userID := ulid.Make()
	env.hasher.On("Hash", "new-password").Return("digest", nil)
	env.resets.On("Consume", mock.Anything, mock.Anything, auth.PurposePasswordReset, mock.Anything).Return(userID, nil)
	env.users.On("UpdatePassword", mock.Anything, userID, "digest", mock.Anything).Return(nil)
	env.sessions.On("RevokeAll", mock.Anything, userID).Return(int64(0), errors.New("deadlock detected"))

	_, err := env.svc.ResetPassword(context.Background(), auth.ResetPasswordInput{
		Token: "fresh", NewPassword: "new-password", ConfirmPassword: "new-password",
	})
	errutil.AssertPublicError(t, err, auth.CodeInternal, auth.MsgInternal)
}

func TestChangePassword(t *testing.T) {
	principal := func(u *auth.User) auth.Principal {
		return auth.Principal{UserID: u.ID, Role: u.Role, SessionID: ulid.Make()}
	}

	t.Run("wrong current password", func(t *testing.T) {
		env := newMockEnv(t, nil)
		user := testUser("alice@example.com")
		env.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		env.hasher.On("Verify", "not-my-password", user.PasswordHash).Return(false, nil)

		_, err := env.svc.ChangePassword(context.Background(), principal(user), auth.ChangePasswordInput{
			CurrentPassword: "not-my-password", NewPassword: "new-password", ConfirmPassword: "new-password",
		})
		errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgCurrentPasswordBad)
	})

	t.Run("unchanged password", func(t *testing.T) {
		env := newMockEnv(t, nil)
		user := testUser("alice@example.com")
		_, err := env.svc.ChangePassword(context.Background(), principal(user), auth.ChangePasswordInput{
			CurrentPassword: "same-password", NewPassword: "same-password", ConfirmPassword: "same-password",
		})
		errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgPasswordUnchanged)
	})

	t.Run("deleted user", func(t *testing.T) {
		env := newMockEnv(t, nil)
		user := testUser("alice@example.com")
		env.users.On("GetByID", mock.Anything, user.ID).Return(nil, notFound())

		_, err := env.svc.ChangePassword(context.Background(), principal(user), auth.ChangePasswordInput{
			CurrentPassword: "old-password", NewPassword: "new-password", ConfirmPassword: "new-password",
		})
		errutil.AssertPublicError(t, err, auth.CodeNotFound, auth.MsgUserNotFound)
	})

	t.Run("keeps sessions by default", func(t *testing.T) {
		env := newMockEnv(t, nil)
		user := testUser("alice@example.com")
		env.users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
		env.hasher.On("Verify", "old-password", user.PasswordHash).Return(true, nil)
		env.hasher.On("Hash", "new-password").Return("digest", nil)
		env.users.On("UpdatePassword", mock.Anything, user.ID, "digest", env.clock.Now()).Return(nil)

		res, err := env.svc.ChangePassword(context.Background(), principal(user), auth.ChangePasswordInput{
			CurrentPassword: "old-password", NewPassword: "new-password", ConfirmPassword: "new-password",
		})
		require.NoError(t, err)
		assert.Equal(t, auth.MsgPasswordChanged, res.Message)
		env.sessions.AssertNotCalled(t, "RevokeAll", mock.Anything, mock.Anything)
	})
}

func TestVerifyEmail(t *testing.T) {
	t.Run("consumes and marks verified", func(t *testing.T) {
		env := newMockEnv(t, nil)
		userID := ulid.Make()
		now := env.clock.Now()
		env.resets.On("Consume", mock.Anything, auth.HashSecret("v"), auth.PurposeEmailVerify, now).Return(userID, nil)
		env.users.On("MarkVerified", mock.Anything, userID, now).Return(nil)
		env.resets.On("InvalidateOutstanding", mock.Anything, userID, auth.PurposeEmailVerify, now).Return(int64(1), nil)

		res, err := env.svc.VerifyEmail(context.Background(), "v")
		require.NoError(t, err)
		assert.Equal(t, auth.MsgEmailVerified, res.Message)
	})

	t.Run("unknown token", func(t *testing.T) {
		env := newMockEnv(t, nil)
		env.resets.On("Consume", mock.Anything, auth.HashSecret("v"), auth.PurposeEmailVerify, mock.Anything).
			Return(ulid.ULID{}, auth.ErrNotFound)

		_, err := env.svc.VerifyEmail(context.Background(), "v")
		errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgInvalidToken)
	})
}

func TestResendVerification_SkipsVerifiedUsers(t *testing.T) {
	env := newMockEnv(t, nil)
	user := testUser("alice@example.com")
	user.EmailVerified = true
	env.users.On("GetByEmail", mock.Anything, user.Email).Return(user, nil)

	res, err := env.svc.ResendVerification(context.Background(), user.Email)
	require.NoError(t, err)
	assert.Equal(t, auth.MsgVerificationResent, res.Message)
	env.resets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRevokeSession_MalformedIDIsNotFound(t *testing.T) {
	env := newMockEnv(t, nil)
	p := auth.Principal{UserID: ulid.Make(), Role: auth.RoleViewer}

	_, err := env.svc.RevokeSession(context.Background(), p, "not-a-ulid")
	errutil.AssertPublicError(t, err, auth.CodeNotFound, auth.MsgSessionNotFound)
}

func TestListSessions_MarksCurrent(t *testing.T) {
	env := newMockEnv(t, nil)
	userID := ulid.Make()
	now := env.clock.Now()
	a, err := auth.NewSession(userID, "h1", "laptop", false, time.Hour, now)
	require.NoError(t, err)
	b, err := auth.NewSession(userID, "h2", "phone", true, time.Hour, now)
	require.NoError(t, err)
	env.sessions.On("ListActive", mock.Anything, userID, now).Return([]*auth.Session{b, a}, nil)

	got, err := env.svc.ListSessions(context.Background(), auth.Principal{UserID: userID, SessionID: a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].Current)
	assert.True(t, got[1].Current)
	assert.Equal(t, "laptop", got[1].DeviceInfo)
}
