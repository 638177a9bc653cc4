// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// SMTPConfig configures SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// RequireTLS rejects servers that do not offer STARTTLS. Disable only for
	// local capture servers.
	RequireTLS bool
}

// SMTPMailer sends each email over a fresh SMTP connection.
type SMTPMailer struct {
	cfg      SMTPConfig
	composer *Composer
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig, composer *Composer) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, oops.Code("MAIL_SMTP_INVALID").
			With("host", cfg.Host).
			With("port", cfg.Port).
			Errorf("smtp host and port are required")
	}
	if composer == nil {
		return nil, oops.Code("MAIL_SMTP_INVALID").Errorf("composer is required")
	}
	return &SMTPMailer{cfg: cfg, composer: composer}, nil
}

// SendVerificationEmail implements auth.Mailer.
func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	return m.send(ctx, m.composer.Verification(user, token, expiresIn))
}

// SendResetEmail implements auth.Mailer.
func (m *SMTPMailer) SendResetEmail(ctx context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	return m.send(ctx, m.composer.PasswordReset(user, token, expiresIn))
}

func (m *SMTPMailer) send(ctx context.Context, msg Message) error {
	if err := m.deliver(ctx, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("kind", msg.Kind).Wrap(err)
	}
	return nil
}

// deliver dials the server and sends msg. The connection honors the context
// deadline.
func (m *SMTPMailer) deliver(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return oops.With("stage", "dial").Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return oops.With("stage", "greeting").Wrap(err)
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return oops.With("stage", "starttls").Wrap(err)
		}
	} else if m.cfg.RequireTLS {
		return oops.With("stage", "starttls").Errorf("smtp server does not offer STARTTLS")
	}

	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return oops.With("stage", "auth").Wrap(err)
		}
	}
	if err := c.Mail(m.composer.From()); err != nil {
		return oops.With("stage", "mail from").Wrap(err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return oops.With("stage", "rcpt to").Wrap(err)
	}
	wc, err := c.Data()
	if err != nil {
		return oops.With("stage", "data").Wrap(err)
	}
	if _, err := wc.Write(m.composer.Bytes(msg)); err != nil {
		_ = wc.Close()
		return oops.With("stage", "write").Wrap(err)
	}
	if err := wc.Close(); err != nil {
		return oops.With("stage", "data close").Wrap(err)
	}
	return c.Quit()
}

var _ auth.Mailer = (*SMTPMailer)(nil)
