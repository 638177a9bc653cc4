// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    ulid.ULID
	Role      Role
	SessionID ulid.ULID // zero when the access token carries no session
}

// HasSession reports whether the principal is bound to a session.
func (p Principal) HasSession() bool {
	return p.SessionID.Compare(ulid.ULID{}) != 0
}

func (p Principal) valid() bool {
	return p.UserID.Compare(ulid.ULID{}) != 0
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
