// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Lockout defaults.
const (
	// DefaultLockoutThreshold is the number of consecutive failures that locks an email.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow is how long failures keep counting toward the threshold.
	DefaultLockoutWindow = 15 * time.Minute

	// DefaultLockoutCooldown is how long a locked email stays locked.
	DefaultLockoutCooldown = 15 * time.Minute
)

// AttemptStatus is the lockout state of an email.
type AttemptStatus string

// Attempt states.
const (
	AttemptClear   AttemptStatus = "CLEAR"
	AttemptWarning AttemptStatus = "WARNING"
	AttemptLocked  AttemptStatus = "LOCKED"
)

// AttemptRecord is the single live failure counter kept per email.
type AttemptRecord struct {
	Email          string
	Failures       int
	FirstFailureAt time.Time
	LockedUntil    *time.Time
}

// AttemptState is the evaluated state of an AttemptRecord at a point in time.
type AttemptState struct {
	Status      AttemptStatus
	Failures    int
	LockedUntil *time.Time // set only when Status is AttemptLocked
}

// Locked reports whether credential checks must be skipped.
func (s AttemptState) Locked() bool {
	return s.Status == AttemptLocked
}

// LockoutPolicy holds the lockout tunables and the transition rules shared by
// every LoginAttemptTracker backend.
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
	Cooldown  time.Duration
}

// DefaultLockoutPolicy returns the default policy: 5 failures within 15 minutes
// lock the email for 15 minutes.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		Threshold: DefaultLockoutThreshold,
		Window:    DefaultLockoutWindow,
		Cooldown:  DefaultLockoutCooldown,
	}
}

// Validate checks the policy values.
func (p LockoutPolicy) Validate() error {
	if p.Threshold < 1 {
		return oops.Code("LOCKOUT_POLICY_INVALID").With("threshold", p.Threshold).Errorf("lockout threshold must be at least 1")
	}
	if p.Window <= 0 {
		return oops.Code("LOCKOUT_POLICY_INVALID").With("window", p.Window).Errorf("lockout window must be positive")
	}
	if p.Cooldown <= 0 {
		return oops.Code("LOCKOUT_POLICY_INVALID").With("cooldown", p.Cooldown).Errorf("lockout cooldown must be positive")
	}
	return nil
}

// State evaluates rec at now. Expired locks and elapsed windows read as clear,
// so no background sweep is needed.
func (p LockoutPolicy) State(rec *AttemptRecord, now time.Time) AttemptState {
	if rec == nil || rec.Failures <= 0 {
		return AttemptState{Status: AttemptClear}
	}
	if rec.LockedUntil != nil {
		if now.Before(*rec.LockedUntil) {
			until := *rec.LockedUntil
			return AttemptState{Status: AttemptLocked, Failures: rec.Failures, LockedUntil: &until}
		}
		return AttemptState{Status: AttemptClear}
	}
	if !now.Before(rec.FirstFailureAt.Add(p.Window)) {
		return AttemptState{Status: AttemptClear}
	}
	return AttemptState{Status: AttemptWarning, Failures: rec.Failures}
}

// ApplyFailure returns the record after one more failure at now.
// The input record is not modified; nil is treated as a fresh record.
func (p LockoutPolicy) ApplyFailure(email string, rec *AttemptRecord, now time.Time) *AttemptRecord {
	next := &AttemptRecord{Email: email}

	switch p.State(rec, now).Status {
	case AttemptClear:
		next.Failures = 1
		next.FirstFailureAt = now
	case AttemptLocked:
		// Failures while locked keep counting but never extend the lock.
		next.Failures = rec.Failures + 1
		next.FirstFailureAt = rec.FirstFailureAt
		until := *rec.LockedUntil
		next.LockedUntil = &until
		return next
	case AttemptWarning:
		next.Failures = rec.Failures + 1
		next.FirstFailureAt = rec.FirstFailureAt
	}

	if next.Failures >= p.Threshold {
		until := now.Add(p.Cooldown)
		next.LockedUntil = &until
	}
	return next
}

// LoginAttemptTracker counts consecutive login failures per email.
//
// Implementations must apply RecordFailure atomically per email so that
// concurrent failures are never lost.
type LoginAttemptTracker interface {
	// CheckAllowed returns the current state. Callers must not verify
	// credentials when the state is locked.
	CheckAllowed(ctx context.Context, email string) (AttemptState, error)

	// RecordFailure counts one failure and returns the resulting state.
	RecordFailure(ctx context.Context, email string) (AttemptState, error)

	// RecordSuccess clears the counter for email.
	RecordSuccess(ctx context.Context, email string) error
}
