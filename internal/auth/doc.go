// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements account authentication and the session lifecycle.
//
// # Domain Types
//
// Domain types (User, Session, ResetToken) should be created using their
// constructors:
//   - NewUser - creates an unverified User with a normalized, validated email
//   - NewSession - creates a Session with a hashed refresh secret and expiry
//   - ResetTokenStore.Issue - creates a single-use ResetToken for one purpose
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Tokens
//
// Access tokens are short-lived signed JWTs carrying the user, role and
// session. Refresh tokens and reset tokens are random secrets; only their
// SHA-256 hashes are stored. A refresh secret is single use: redeeming it
// rotates the session, and presenting a rotated secret again revokes every
// session of its owner.
//
// # Services
//
// Service coordinates the use cases (register, login, refresh, logout,
// password reset and change, email verification, session management) over
// the repository, tracker, hasher, codec and mailer interfaces declared here.
// Every error returned by Service carries one of the public Code* values and
// can be classified with KindOf.
package auth
