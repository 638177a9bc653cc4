// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"log/slog"
	"time"

	"github.com/holomush/authcore/internal/auth"
)

// LogMailer records outgoing mail in the log instead of sending it. Tokens
// are never written.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer. A nil logger uses slog.Default.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendVerificationEmail implements auth.Mailer.
func (m *LogMailer) SendVerificationEmail(ctx context.Context, user auth.UserSummary, _ string, expiresIn time.Duration) error {
	m.log(ctx, KindVerification, user, expiresIn)
	return nil
}

// SendResetEmail implements auth.Mailer.
func (m *LogMailer) SendResetEmail(ctx context.Context, user auth.UserSummary, _ string, expiresIn time.Duration) error {
	m.log(ctx, KindPasswordReset, user, expiresIn)
	return nil
}

func (m *LogMailer) log(ctx context.Context, kind string, user auth.UserSummary, expiresIn time.Duration) {
	m.logger.InfoContext(ctx, "mail not sent (log transport)",
		"kind", kind,
		"user_id", user.ID.String(),
		"expires_in", expiresIn.String(),
	)
}

var _ auth.Mailer = (*LogMailer)(nil)
