// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Repository-level sentinels. Storage implementations wrap these so callers
// can match with errors.Is regardless of the backing store.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a user with the same normalized email exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrSessionReused is returned by SessionRepository.Rotate when the session being
	// rotated was already superseded. The repository has revoked every session of the
	// owning user by the time this is returned.
	ErrSessionReused = errors.New("refresh token reused")
)

// Kind classifies errors returned by Service operations.
type Kind string

// Error kinds surfaced to callers.
const (
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindInternal           Kind = "internal"
)

// Error codes attached to every error returned by Service.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodeConflict           = "AUTH_CONFLICT"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeNotFound           = "AUTH_NOT_FOUND"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeInternal           = "AUTH_INTERNAL"
)

// Caller-visible messages.
const (
	MsgInvalidCredentials  = "Invalid credentials"
	MsgTooManyAttempts     = "Too many failed attempts. Please try again later."
	MsgUnauthorized        = "Invalid or expired access token"
	MsgInternal            = "internal error"
	MsgEmailTaken          = "Email is already registered"
	MsgPasswordMismatch    = "Passwords do not match"
	MsgInvalidToken        = "Invalid or expired token"
	MsgSessionNotFound     = "Session not found"
	MsgCurrentPasswordBad  = "Current password is incorrect"
	MsgPasswordUnchanged   = "New password must differ from the current password"
	MsgRefreshRequired     = "Refresh token is required"
	MsgEmailRequired       = "Email is required"
	MsgPasswordRequired    = "Password is required"
	MsgRoleNotPermitted    = "Role cannot be self-assigned"
	MsgEmailNotPermitted   = "Email domain is not permitted"
	MsgDisplayNameRequired = "Display name is required"
	MsgUserNotFound        = "User not found"
)

// KindOf reports the Kind of an error returned by Service. Errors that do not
// carry one of the public codes are classified as KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	switch oopsErr.Code() {
	case CodeValidation:
		return KindValidation
	case CodeConflict:
		return KindConflict
	case CodeInvalidCredentials:
		return KindInvalidCredentials
	case CodeNotFound:
		return KindNotFound
	case CodeUnauthorized:
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// PublicMessage returns the message safe to show to an external caller.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInternal {
		return MsgInternal
	}
	return err.Error()
}

// outcomeOf returns the Observer outcome for an operation result.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if outcome, ok := oopsErr.Context()["outcome"].(string); ok {
			return outcome
		}
	}
	return string(KindOf(err))
}

func validationError(msg string) error {
	return oops.Code(CodeValidation).Errorf("%s", msg)
}

func conflictError(msg string) error {
	return oops.Code(CodeConflict).Errorf("%s", msg)
}

func invalidCredentialsError() error {
	return oops.Code(CodeInvalidCredentials).Errorf("%s", MsgInvalidCredentials)
}

func lockedOutError(state AttemptState) error {
	return oops.Code(CodeInvalidCredentials).
		With("outcome", OutcomeLocked).
		With("locked_until", state.LockedUntil).
		Errorf("%s", MsgTooManyAttempts)
}

func reusedSessionError(sessionID string) error {
	return oops.Code(CodeInvalidCredentials).
		With("outcome", OutcomeReused).
		With("session_id", sessionID).
		Errorf("%s", MsgInvalidCredentials)
}

func notFoundError(msg string) error {
	return oops.Code(CodeNotFound).Errorf("%s", msg)
}

func unauthorizedError() error {
	return oops.Code(CodeUnauthorized).Errorf("%s", MsgUnauthorized)
}

// internalError is the opaque error returned for storage and crypto failures.
// The cause is logged by the caller, never returned.
func internalError(operation string) error {
	return oops.Code(CodeInternal).With("operation", operation).Errorf("%s", MsgInternal)
}
