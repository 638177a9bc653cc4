// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/holomush/authcore/internal/auth"
)

// Attempts is an in-memory auth.LoginAttemptTracker. It is only correct
// within a single process.
type Attempts struct {
	mu      sync.Mutex
	policy  auth.LockoutPolicy
	records map[string]*auth.AttemptRecord
	now     func() time.Time
}

// NewAttempts creates an Attempts tracker. A nil clock uses time.Now.
func NewAttempts(policy auth.LockoutPolicy, now func() time.Time) *Attempts {
	if now == nil {
		now = time.Now
	}
	return &Attempts{
		policy:  policy,
		records: make(map[string]*auth.AttemptRecord),
		now:     now,
	}
}

// CheckAllowed returns the state of email.
func (a *Attempts) CheckAllowed(_ context.Context, email string) (auth.AttemptState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy.State(a.records[email], a.now()), nil
}

// RecordFailure counts one failure for email.
func (a *Attempts) RecordFailure(_ context.Context, email string) (auth.AttemptState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	next := a.policy.ApplyFailure(email, a.records[email], now)
	a.records[email] = next
	return a.policy.State(next, now), nil
}

// RecordSuccess clears the record of email.
func (a *Attempts) RecordSuccess(_ context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.records, email)
	return nil
}

// Record returns a copy of the stored record for email, or nil.
func (a *Attempts) Record(email string) *auth.AttemptRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[email]
	if !ok {
		return nil
	}
	out := *rec
	return &out
}

var _ auth.LoginAttemptTracker = (*Attempts)(nil)
