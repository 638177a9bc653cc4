// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/pkg/errutil"
)

func TestScenario_RegisterLoginLockoutAndRevoke(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)

	env.register(t, "a@x.com", "P@ssw0rd!")

	login, err := env.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Tokens.AccessToken)
	assert.NotEmpty(t, login.Tokens.RefreshToken)
	assert.Equal(t, "Bearer", login.Tokens.TokenType)

	for i := range 5 {
		_, err := env.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "wrong-password"})
		errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)
		assert.Equal(t, auth.KindInvalidCredentials, auth.KindOf(err), "attempt %d", i+1)
	}

	// Correct credentials are not even checked once locked.
	_, err = env.svc.Login(ctx, auth.LoginInput{Email: "a@x.com", Password: "P@ssw0rd!"})
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgTooManyAttempts)

	principal, err := env.svc.Authenticate(ctx, login.Tokens.AccessToken)
	require.NoError(t, err)

	sessions, err := env.svc.ListSessions(ctx, principal)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(sessions), 1)

	_, err = env.svc.RevokeAllSessions(ctx, principal)
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, login.Tokens.RefreshToken)
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)
}

func TestLogin_LockExpiresAfterCooldown(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	env.register(t, "cool@x.com", "P@ssw0rd!")

	for range 5 {
		_, _ = env.svc.Login(ctx, auth.LoginInput{Email: "cool@x.com", Password: "nope-nope"})
	}
	_, err := env.svc.Login(ctx, auth.LoginInput{Email: "cool@x.com", Password: "P@ssw0rd!"})
	assert.Equal(t, auth.MsgTooManyAttempts, err.Error())

	env.clock.Advance(auth.DefaultLockoutCooldown)

	_, err = env.svc.Login(ctx, auth.LoginInput{Email: "cool@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)
}

func TestLogin_SuccessResetsFailureCounter(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	env.register(t, "reset-counter@x.com", "P@ssw0rd!")

	for range 4 {
		_, _ = env.svc.Login(ctx, auth.LoginInput{Email: "reset-counter@x.com", Password: "nope-nope"})
	}
	require.Equal(t, 4, env.attempts.Record("reset-counter@x.com").Failures)

	_, err := env.svc.Login(ctx, auth.LoginInput{Email: "Reset-Counter@X.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)
	assert.Nil(t, env.attempts.Record("reset-counter@x.com"))

	// Four more failures must not lock: the count restarted.
	for range 4 {
		_, _ = env.svc.Login(ctx, auth.LoginInput{Email: "reset-counter@x.com", Password: "nope-nope"})
	}
	_, err = env.svc.Login(ctx, auth.LoginInput{Email: "reset-counter@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)
}

func TestLogin_UnknownEmailCountsTowardsLockout(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)

	for range 5 {
		_, err := env.svc.Login(ctx, auth.LoginInput{Email: "ghost@x.com", Password: "whatever1"})
		assert.Equal(t, auth.MsgInvalidCredentials, err.Error())
	}
	_, err := env.svc.Login(ctx, auth.LoginInput{Email: "ghost@x.com", Password: "whatever1"})
	assert.Equal(t, auth.MsgTooManyAttempts, err.Error())
}

func TestLogin_ConcurrentFailuresAreAllCounted(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	env.register(t, "burst@x.com", "P@ssw0rd!")

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.svc.Login(ctx, auth.LoginInput{Email: "burst@x.com", Password: "nope-nope"})
		}()
	}
	wg.Wait()

	_, err := env.svc.Login(ctx, auth.LoginInput{Email: "burst@x.com", Password: "P@ssw0rd!"})
	assert.Equal(t, auth.MsgTooManyAttempts, err.Error())
}

func TestRegister_DuplicateEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	env.register(t, "dup@x.com", "P@ssw0rd!")

	_, err := env.svc.Register(ctx, auth.RegisterInput{
		Email: "DUP@X.com", Password: "P@ssw0rd!", ConfirmPassword: "P@ssw0rd!", DisplayName: "Dup",
	})
	errutil.AssertPublicError(t, err, auth.CodeConflict, auth.MsgEmailTaken)
}

func TestScenario_RegisterSendsVerificationMail(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	res := env.register(t, "verify@x.com", "P@ssw0rd!")
	assert.False(t, res.User.EmailVerified)

	msg := env.waitMail(t, "verification", "verify@x.com")
	assert.Equal(t, auth.DefaultVerifyTokenTTL, msg.ExpiresIn)

	status, err := env.svc.VerifyEmail(ctx, msg.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.MsgEmailVerified, status.Message)

	user, err := env.users.GetByEmail(ctx, "verify@x.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	_, err = env.svc.VerifyEmail(ctx, msg.Token)
	errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgInvalidToken)
}

func TestRefresh_RotatesAndDetectsReuse(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	first := env.register(t, "rotate@x.com", "P@ssw0rd!")

	env.clock.Advance(time.Minute)
	second, err := env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	// Presenting the rotated secret again is theft: every session goes.
	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)

	_, err = env.svc.Refresh(ctx, second.Tokens.RefreshToken)
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)

	assert.Contains(t, env.observer.Calls(), "refresh:reused")
}

func TestRefresh_ConcurrentRedemptionSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	res := env.register(t, "race@x.com", "P@ssw0rd!")

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.Refresh(ctx, res.Tokens.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRefresh_ExpiredSessionFails(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	res := env.register(t, "expire@x.com", "P@ssw0rd!")

	env.clock.Advance(auth.DefaultSessionTTL)
	_, err := env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)
}

func TestResetPassword_SingleUseAndRevokesSessions(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	res := env.register(t, "forgot@x.com", "P@ssw0rd!")

	status, err := env.svc.ForgotPassword(ctx, "forgot@x.com")
	require.NoError(t, err)
	assert.Equal(t, auth.MsgResetRequested, status.Message)
	msg := env.waitMail(t, "password_reset", "forgot@x.com")

	in := auth.ResetPasswordInput{Token: msg.Token, NewPassword: "N3w-passw0rd", ConfirmPassword: "N3w-passw0rd"}
	status, err = env.svc.ResetPassword(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, auth.MsgPasswordReset, status.Message)

	_, err = env.svc.ResetPassword(ctx, in)
	errutil.AssertPublicError(t, err, auth.CodeValidation, auth.MsgInvalidToken)

	_, err = env.svc.Refresh(ctx, res.Tokens.RefreshToken)
	errutil.AssertPublicError(t, err, auth.CodeInvalidCredentials, auth.MsgInvalidCredentials)

	_, err = env.svc.Login(ctx, auth.LoginInput{Email: "forgot@x.com", Password: "P@ssw0rd!"})
	require.Error(t, err)
	_, err = env.svc.Login(ctx, auth.LoginInput{Email: "forgot@x.com", Password: "N3w-passw0rd"})
	require.NoError(t, err)

	user, err := env.users.GetByEmail(ctx, "forgot@x.com")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified, "redeeming a reset link proves the inbox")
}

func TestAntiEnumeration_IdenticalResponses(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	env.register(t, "known@x.com", "P@ssw0rd!")

	known, err := env.svc.ForgotPassword(ctx, "known@x.com")
	require.NoError(t, err)
	unknown, err := env.svc.ForgotPassword(ctx, "unknown@x.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown)

	known, err = env.svc.ResendVerification(ctx, "known@x.com")
	require.NoError(t, err)
	unknown, err = env.svc.ResendVerification(ctx, "unknown@x.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown)

	env.waitMail(t, "password_reset", "known@x.com")
	assert.Zero(t, env.mailCount("password_reset", "unknown@x.com"))
	assert.Zero(t, env.mailCount("verification", "unknown@x.com"))
}

func TestChangePassword_KeepsOtherSessionsByDefault(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	first := env.register(t, "change@x.com", "P@ssw0rd!")
	second, err := env.svc.Login(ctx, auth.LoginInput{Email: "change@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)

	p, err := env.svc.Authenticate(ctx, second.Tokens.AccessToken)
	require.NoError(t, err)

	_, err = env.svc.ChangePassword(ctx, p, auth.ChangePasswordInput{
		CurrentPassword: "P@ssw0rd!", NewPassword: "An0ther-pass", ConfirmPassword: "An0ther-pass",
	})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err, "other sessions survive a password change")
}

func TestChangePassword_RevokesOtherSessionsWhenConfigured(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t, func(c *auth.ServiceConfig) { c.RevokeSessionsOnPasswordChange = true })
	first := env.register(t, "change2@x.com", "P@ssw0rd!")
	second, err := env.svc.Login(ctx, auth.LoginInput{Email: "change2@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)

	p, err := env.svc.Authenticate(ctx, second.Tokens.AccessToken)
	require.NoError(t, err)

	_, err = env.svc.ChangePassword(ctx, p, auth.ChangePasswordInput{
		CurrentPassword: "P@ssw0rd!", NewPassword: "An0ther-pass", ConfirmPassword: "An0ther-pass",
	})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.Error(t, err)
	_, err = env.svc.Refresh(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err, "the caller's own session stays")
}

func TestSessions_ListMarksCurrentAndRevokeIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	alice := env.register(t, "alice@x.com", "P@ssw0rd!")
	env.clock.Advance(time.Second)
	bob := env.register(t, "bob@x.com", "P@ssw0rd!")

	pa, err := env.svc.Authenticate(ctx, alice.Tokens.AccessToken)
	require.NoError(t, err)
	pb, err := env.svc.Authenticate(ctx, bob.Tokens.AccessToken)
	require.NoError(t, err)

	list, err := env.svc.ListSessions(ctx, pa)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Current)

	_, err = env.svc.RevokeSession(ctx, pb, list[0].ID.String())
	errutil.AssertPublicError(t, err, auth.CodeNotFound, auth.MsgSessionNotFound)

	_, err = env.svc.RevokeSession(ctx, pa, "not-a-ulid")
	errutil.AssertPublicError(t, err, auth.CodeNotFound, auth.MsgSessionNotFound)

	status, err := env.svc.RevokeSession(ctx, pa, list[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, auth.MsgSessionRevoked, status.Message)

	list, err = env.svc.ListSessions(ctx, pa)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLogout_RevokesOnlyTheCurrentSession(t *testing.T) {
	ctx := context.Background()
	env := newMemEnv(t)
	first := env.register(t, "logout@x.com", "P@ssw0rd!")
	second, err := env.svc.Login(ctx, auth.LoginInput{Email: "logout@x.com", Password: "P@ssw0rd!"})
	require.NoError(t, err)

	p, err := env.svc.Authenticate(ctx, second.Tokens.AccessToken)
	require.NoError(t, err)

	status, err := env.svc.Logout(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, auth.MsgLoggedOut, status.Message)

	// Second logout with the same token is a no-op success.
	_, err = env.svc.Logout(ctx, p)
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, second.Tokens.RefreshToken)
	require.Error(t, err)
	_, err = env.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
}
