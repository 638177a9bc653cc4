// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/memstore"
	authpg "github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/seed"
)

var _ = Describe("Registration and login", func() {
	It("registers an unverified viewer and lets it log in", func() {
		email := uniqueEmail("alice")
		resp := register(email)

		user := resp.user()
		Expect(user["email"]).To(Equal(email))
		Expect(user["role"]).To(Equal(string(auth.RoleViewer)))
		Expect(user["emailVerified"]).To(BeFalse())

		access, refresh := resp.tokens()
		Expect(access).NotTo(BeEmpty())
		Expect(refresh).NotTo(BeEmpty())

		Expect(login(email, testPassword).Status).To(Equal(http.StatusOK))
	})

	It("rejects a second registration of the same email regardless of case", func() {
		email := uniqueEmail("dup")
		register(email)

		resp := call(http.MethodPost, "/auth/register", "", map[string]any{
			"email":           "  " + strings.ToUpper(email),
			"password":        testPassword,
			"confirmPassword": testPassword,
			"displayName":     "Someone Else",
		})
		Expect(resp.Status).To(Equal(http.StatusConflict))
		Expect(resp.message()).To(Equal(auth.MsgEmailTaken))
	})

	It("answers unknown emails and wrong passwords identically", func() {
		email := uniqueEmail("bob")
		register(email)

		wrong := login(email, "not the password")
		unknown := login(uniqueEmail("nobody"), "not the password")

		Expect(wrong.Status).To(Equal(http.StatusUnauthorized))
		Expect(unknown.Status).To(Equal(wrong.Status))
		Expect(unknown.message()).To(Equal(wrong.message()))
	})

	It("locks an email after repeated failures, even for the right password", func() {
		email := uniqueEmail("carol")
		register(email)

		for range lockoutThreshold {
			Expect(login(email, "wrong password!").Status).To(Equal(http.StatusUnauthorized))
		}

		resp := login(email, testPassword)
		Expect(resp.Status).To(Equal(http.StatusUnauthorized))
		Expect(resp.message()).To(Equal(auth.MsgTooManyAttempts))
	})
})

var _ = Describe("Refresh tokens", func() {
	It("rotates the refresh secret and revokes everything on replay", func() {
		email := uniqueEmail("dave")
		_, first := register(email).tokens()

		rotated := call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": first})
		Expect(rotated.Status).To(Equal(http.StatusOK))
		_, second := rotated.tokens()
		Expect(second).NotTo(Equal(first))

		replay := call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": first})
		Expect(replay.Status).To(Equal(http.StatusUnauthorized))

		// The replay revoked the rotated session too.
		after := call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": second})
		Expect(after.Status).To(Equal(http.StatusUnauthorized))
	})

	It("stops refreshing after logout", func() {
		email := uniqueEmail("erin")
		access, refresh := register(email).tokens()

		Expect(call(http.MethodPost, "/auth/logout", access, nil).Status).To(Equal(http.StatusOK))

		resp := call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": refresh})
		Expect(resp.Status).To(Equal(http.StatusUnauthorized))
	})
})

var _ = Describe("Email verification", func() {
	It("verifies the email with the mailed token exactly once", func() {
		email := uniqueEmail("frank")
		register(email)
		msg := awaitMail(memstore.KindVerification, email)

		ok := call(http.MethodPost, "/auth/email/verify", "", map[string]any{"token": msg.Token})
		Expect(ok.Status).To(Equal(http.StatusOK))

		again := call(http.MethodPost, "/auth/email/verify", "", map[string]any{"token": msg.Token})
		Expect(again.Status).To(Equal(http.StatusBadRequest))

		Expect(login(email, testPassword).user()["emailVerified"]).To(BeTrue())
	})
})

var _ = Describe("Password reset", func() {
	It("resets the password and revokes every session", func() {
		email := uniqueEmail("grace")
		_, refresh := register(email).tokens()

		forgot := call(http.MethodPost, "/auth/password/forgot", "", map[string]any{"email": email})
		Expect(forgot.Status).To(Equal(http.StatusOK))
		Expect(forgot.message()).To(Equal(auth.MsgResetRequested))
		msg := awaitMail(memstore.KindReset, email)

		const newPassword = "an entirely new passphrase"
		reset := call(http.MethodPost, "/auth/password/reset", "", map[string]any{
			"token":           msg.Token,
			"newPassword":     newPassword,
			"confirmPassword": newPassword,
		})
		Expect(reset.Status).To(Equal(http.StatusOK))

		Expect(call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": refresh}).Status).
			To(Equal(http.StatusUnauthorized))
		Expect(login(email, testPassword).Status).To(Equal(http.StatusUnauthorized))
		Expect(login(email, newPassword).Status).To(Equal(http.StatusOK))
	})

	It("gives the same answer for unknown emails", func() {
		resp := call(http.MethodPost, "/auth/password/forgot", "", map[string]any{"email": uniqueEmail("ghost")})
		Expect(resp.Status).To(Equal(http.StatusOK))
		Expect(resp.message()).To(Equal(auth.MsgResetRequested))
	})
})

var _ = Describe("Session management", func() {
	It("lists, revokes one and revokes all sessions", func() {
		email := uniqueEmail("heidi")
		access, _ := register(email).tokens()
		_, otherRefresh := login(email, testPassword).tokens()

		list := call(http.MethodGet, "/auth/sessions", access, nil)
		Expect(list.Status).To(Equal(http.StatusOK))
		sessions, ok := list.Body["sessions"].([]any)
		Expect(ok).To(BeTrue())
		Expect(sessions).To(HaveLen(2))

		var otherID string
		for _, s := range sessions {
			entry := s.(map[string]any)
			if entry["current"] != true {
				otherID = entry["id"].(string)
			}
		}
		Expect(otherID).NotTo(BeEmpty())

		Expect(call(http.MethodDelete, "/auth/sessions/"+otherID, access, nil).Status).To(Equal(http.StatusOK))
		Expect(call(http.MethodPost, "/auth/refresh", "", map[string]any{"refreshToken": otherRefresh}).Status).
			To(Equal(http.StatusUnauthorized))

		Expect(call(http.MethodDelete, "/auth/sessions", access, nil).Status).To(Equal(http.StatusOK))
		remaining := call(http.MethodGet, "/auth/sessions", access, nil)
		Expect(remaining.Body["sessions"]).To(BeEmpty())
	})

	It("reports another user's session as not found", func() {
		mine, _ := register(uniqueEmail("ivan")).tokens()
		theirs, _ := register(uniqueEmail("judy")).tokens()

		list := call(http.MethodGet, "/auth/sessions", theirs, nil)
		entry := list.Body["sessions"].([]any)[0].(map[string]any)

		resp := call(http.MethodDelete, "/auth/sessions/"+entry["id"].(string), mine, nil)
		Expect(resp.Status).To(Equal(http.StatusNotFound))
		Expect(resp.message()).To(Equal(auth.MsgSessionNotFound))
	})

	It("requires a bearer token", func() {
		resp := call(http.MethodGet, "/auth/sessions", "", nil)
		Expect(resp.Status).To(Equal(http.StatusUnauthorized))
		Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Bearer"))
	})
})

var _ = Describe("Seeding", func() {
	It("creates a verified admin that can log in, and skips it on rerun", func() {
		email := uniqueEmail("root")
		file := &seed.File{Users: []seed.User{{
			Email:       email,
			DisplayName: "Root",
			Role:        string(auth.RoleAdmin),
			PasswordEnv: "SEED_ADMIN_PASSWORD",
			Verified:    true,
		}}}
		getenv := func(key string) string {
			if key == "SEED_ADMIN_PASSWORD" {
				return testPassword
			}
			return ""
		}
		seeder := seed.NewSeeder(authpg.NewUserRepository(env.pool), env.hasher, seed.WithGetenv(getenv))

		res, err := seeder.Apply(env.ctx, file)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Created).To(ConsistOf(email))

		user := login(email, testPassword).user()
		Expect(user["role"]).To(Equal(string(auth.RoleAdmin)))
		Expect(user["emailVerified"]).To(BeTrue())

		res, err = seeder.Apply(env.ctx, file)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Skipped).To(ConsistOf(email))
		Expect(res.Created).To(BeEmpty())
	})
})
