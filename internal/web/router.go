// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultRequestTimeout bounds a request when RouterOptions leaves it unset.
const DefaultRequestTimeout = 15 * time.Second

// RouterOptions configures NewRouter.
type RouterOptions struct {
	RequestTimeout time.Duration
	Observer       HTTPObserver // optional
	Logger         *slog.Logger
}

// NewRouter returns the auth API routes with the standard middleware stack.
func NewRouter(svc AuthService, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := NewHandler(svc, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger))
	if opts.Observer != nil {
		r.Use(instrument(opts.Observer))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/password/forgot", h.ForgotPassword)
		r.Post("/password/reset", h.ResetPassword)
		r.Post("/email/verify", h.VerifyEmail)
		r.Post("/email/resend", h.ResendVerification)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.Logout)
			r.Post("/password/change", h.ChangePassword)
			r.Get("/sessions", h.ListSessions)
			r.Delete("/sessions", h.RevokeAllSessions)
			r.Delete("/sessions/{id}", h.RevokeSession)
		})
	})
	return r
}
