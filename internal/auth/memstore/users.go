// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// Users is an in-memory auth.UserRepository.
type Users struct {
	mu      sync.RWMutex
	byID    map[ulid.ULID]*auth.User
	byEmail map[string]ulid.ULID
}

// NewUsers creates an empty Users store.
func NewUsers() *Users {
	return &Users{
		byID:    make(map[ulid.ULID]*auth.User),
		byEmail: make(map[string]ulid.ULID),
	}
}

// Create stores a copy of user.
func (r *Users) Create(_ context.Context, user *auth.User) error {
	email := auth.NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byEmail[email]; taken {
		return oops.Code("USER_DUPLICATE_EMAIL").With("email", email).Wrap(auth.ErrDuplicateEmail)
	}
	stored := *user
	stored.Email = email
	r.byID[user.ID] = &stored
	r.byEmail[email] = user.ID
	return nil
}

// GetByID returns a copy of the user.
func (r *Users) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	out := *u
	return &out, nil
}

// GetByEmail returns a copy of the user with the given email.
func (r *Users) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[auth.NormalizeEmail(email)]
	r.mu.RUnlock()
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// UpdatePassword replaces the stored hash.
func (r *Users) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string, at time.Time) error {
	return r.update(id, func(u *auth.User) {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
	})
}

// MarkVerified sets EmailVerified.
func (r *Users) MarkVerified(_ context.Context, id ulid.ULID, at time.Time) error {
	return r.update(id, func(u *auth.User) {
		if !u.EmailVerified {
			u.EmailVerified = true
			u.UpdatedAt = at
		}
	})
}

// Delete removes the user.
func (r *Users) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	delete(r.byEmail, u.Email)
	delete(r.byID, id)
	return nil
}

func (r *Users) update(id ulid.ULID, fn func(*auth.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	fn(u)
	return nil
}

var _ auth.UserRepository = (*Users)(nil)
