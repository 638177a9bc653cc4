// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the coarse authorization level carried in access tokens.
type Role string

// Known roles.
const (
	RoleViewer Role = "VIEWER"
	RoleEditor Role = "EDITOR"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole parses a role name case-insensitively. An empty name yields RoleViewer.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case "", RoleViewer:
		return RoleViewer, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", oops.Code(CodeValidation).With("role", s).Errorf("unknown role %q", s)
}

// Password and profile constraints.
const (
	MinPasswordLength    = 8
	MaxPasswordLength    = 128
	MaxDisplayNameLength = 100
	MaxEmailLength       = 254
)

// User is an account identity.
type User struct {
	ID            ulid.ULID
	Email         string // normalized, see NormalizeEmail
	PasswordHash  string
	DisplayName   string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser creates a validated, unverified User.
func NewUser(email, passwordHash, displayName string, role Role, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}
	displayName = strings.TrimSpace(displayName)
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	parsed, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}

	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Role:         parsed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare addr-spec such as "a@x.com".
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeValidation).With("field", "email").Errorf("%s", MsgEmailRequired)
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeValidation).With("field", "email").Errorf("Email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code(CodeValidation).With("field", "email").Errorf("Email address is invalid")
	}
	return nil
}

// ValidatePassword enforces length bounds on a plaintext password.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code(CodeValidation).With("field", "password").Errorf("%s", MsgPasswordRequired)
	}
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return oops.Code(CodeValidation).
			With("field", "password").
			With("min", MinPasswordLength).
			Errorf("Password must be at least %d characters", MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return oops.Code(CodeValidation).
			With("field", "password").
			With("max", MaxPasswordLength).
			Errorf("Password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// ValidateDisplayName requires a non-empty name of bounded length.
func ValidateDisplayName(name string) error {
	if name == "" {
		return oops.Code(CodeValidation).With("field", "display_name").Errorf("%s", MsgDisplayNameRequired)
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return oops.Code(CodeValidation).
			With("field", "display_name").
			Errorf("Display name must be at most %d characters", MaxDisplayNameLength)
	}
	return nil
}

// EmailPolicy restricts which addresses may register. Patterns are globs
// matched against the normalized address, e.g. "*@example.com".
type EmailPolicy struct {
	patterns []glob.Glob
}

// NewEmailPolicy compiles the patterns. No patterns means every address is allowed.
func NewEmailPolicy(patterns []string) (*EmailPolicy, error) {
	p := &EmailPolicy{}
	for _, raw := range patterns {
		g, err := glob.Compile(NormalizeEmail(raw))
		if err != nil {
			return nil, oops.Code("AUTH_EMAIL_POLICY_INVALID").With("pattern", raw).Wrap(err)
		}
		p.patterns = append(p.patterns, g)
	}
	return p, nil
}

// Allows reports whether the normalized email matches at least one pattern.
func (p *EmailPolicy) Allows(email string) bool {
	if p == nil || len(p.patterns) == 0 {
		return true
	}
	for _, g := range p.patterns {
		if g.Match(email) {
			return true
		}
	}
	return false
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string, at time.Time) error

	// MarkVerified sets EmailVerified.
	MarkVerified(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes a user together with its sessions and tokens.
	// Returns ErrNotFound if no user has the given ID.
	Delete(ctx context.Context, id ulid.ULID) error
}
