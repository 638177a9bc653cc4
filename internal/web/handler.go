// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/holomush/authcore/internal/auth"
)

// AuthService is the part of auth.Service exposed over HTTP.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthResult, error)
	Logout(ctx context.Context, p auth.Principal) (*auth.StatusResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.AuthResult, error)
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
	ForgotPassword(ctx context.Context, email string) (*auth.StatusResult, error)
	ResetPassword(ctx context.Context, in auth.ResetPasswordInput) (*auth.StatusResult, error)
	ChangePassword(ctx context.Context, p auth.Principal, in auth.ChangePasswordInput) (*auth.StatusResult, error)
	VerifyEmail(ctx context.Context, token string) (*auth.StatusResult, error)
	ResendVerification(ctx context.Context, email string) (*auth.StatusResult, error)
	ListSessions(ctx context.Context, p auth.Principal) ([]auth.SessionSummary, error)
	RevokeSession(ctx context.Context, p auth.Principal, sessionID string) (*auth.StatusResult, error)
	RevokeAllSessions(ctx context.Context, p auth.Principal) (*auth.StatusResult, error)
}

var _ AuthService = (*auth.Service)(nil)

// Handler serves the auth API.
type Handler struct {
	svc    AuthService
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil logger uses slog.Default.
func NewHandler(svc AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	DisplayName     string `json:"displayName"`
	Role            string `json:"role"`
	DeviceInfo      string `json:"deviceInfo"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	DeviceInfo string `json:"deviceInfo"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type sessionsResponse struct {
	Sessions []auth.SessionSummary `json:"sessions"`
}

// deviceInfo prefers the client-supplied description and falls back to the
// User-Agent header.
func deviceInfo(r *http.Request, supplied string) string {
	if supplied != "" {
		return supplied
	}
	return r.UserAgent()
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), auth.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		DisplayName:     req.DisplayName,
		Role:            auth.Role(req.Role),
		DeviceInfo:      deviceInfo(r, req.DeviceInfo),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		DeviceInfo: deviceInfo(r, req.DeviceInfo),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ForgotPassword handles POST /auth/password/forgot.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w)(h.svc.ForgotPassword(r.Context(), req.Email))
}

// ResetPassword handles POST /auth/password/reset.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w)(h.svc.ResetPassword(r.Context(), auth.ResetPasswordInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}))
}

// VerifyEmail handles POST /auth/email/verify.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w)(h.svc.VerifyEmail(r.Context(), req.Token))
}

// ResendVerification handles POST /auth/email/resend.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w)(h.svc.ResendVerification(r.Context(), req.Email))
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	h.status(w)(h.svc.Logout(r.Context(), p))
}

// ChangePassword handles POST /auth/password/change.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	h.status(w)(h.svc.ChangePassword(r.Context(), p, auth.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}))
}

// ListSessions handles GET /auth/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	sessions, err := h.svc.ListSessions(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

// RevokeSession handles DELETE /auth/sessions/{id}.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	h.status(w)(h.svc.RevokeSession(r.Context(), p, chi.URLParam(r, "id")))
}

// RevokeAllSessions handles DELETE /auth/sessions.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	h.status(w)(h.svc.RevokeAllSessions(r.Context(), p))
}

// status returns a writer for operations that report a StatusResult.
func (h *Handler) status(w http.ResponseWriter) func(*auth.StatusResult, error) {
	return func(res *auth.StatusResult, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
