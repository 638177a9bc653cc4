// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"
)

// Mailer delivers token emails. Delivery failures are logged by the service
// and never change the result returned to the caller.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, user UserSummary, token string, expiresIn time.Duration) error
	SendResetEmail(ctx context.Context, user UserSummary, token string, expiresIn time.Duration) error
}

// Observer receives one outcome per completed service operation.
type Observer interface {
	AuthOperation(operation, outcome string)
}

// Operation outcomes reported to Observer besides the error kinds.
const (
	OutcomeSuccess = "success"
	OutcomeLocked  = "locked"
	OutcomeReused  = "reused"
)

type nopObserver struct{}

func (nopObserver) AuthOperation(string, string) {}
