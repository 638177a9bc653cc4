// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mail delivers the verification and password reset emails sent by
// auth.Service. Every transport implements auth.Mailer.
package mail

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
)

// Mail kinds, used as queue job types and log attributes.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

// Link paths appended to the configured base URL.
const (
	verifyPath = "/verify-email"
	resetPath  = "/reset-password"
)

// Message is a rendered plain-text email.
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Composer renders token emails. Links point at the client application, which
// posts the token back to the API.
type Composer struct {
	from    *mail.Address
	baseURL *url.URL
}

// NewComposer parses the sender address and link base URL.
func NewComposer(from, linkBaseURL string) (*Composer, error) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, oops.Code("MAIL_FROM_INVALID").With("from", from).Wrap(err)
	}
	base, err := url.Parse(strings.TrimRight(linkBaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code("MAIL_LINK_BASE_INVALID").
			With("link_base_url", linkBaseURL).
			Errorf("link base URL must be absolute")
	}
	return &Composer{from: addr, baseURL: base}, nil
}

// From returns the bare sender address used in the SMTP envelope.
func (c *Composer) From() string {
	return c.from.Address
}

// Verification renders the email verification message.
func (c *Composer) Verification(user auth.UserSummary, token string, expiresIn time.Duration) Message {
	body := greeting(user) +
		"Please verify your email address to finish setting up your account.\n\n" +
		"Open the link below to confirm your email:\n\n" +
		c.link(verifyPath, token) + "\n\n" +
		"This link expires in " + formatDuration(expiresIn) + ". If you did not create an account, ignore this email.\n"
	return Message{Kind: KindVerification, To: user.Email, Subject: "Confirm your email address", Body: body}
}

// PasswordReset renders the password reset message.
func (c *Composer) PasswordReset(user auth.UserSummary, token string, expiresIn time.Duration) Message {
	body := greeting(user) +
		"You requested a password reset.\n\n" +
		"Open the link below to choose a new password:\n\n" +
		c.link(resetPath, token) + "\n\n" +
		"This link expires in " + formatDuration(expiresIn) + ". If you did not request a reset, ignore this email.\n"
	return Message{Kind: KindPasswordReset, To: user.Email, Subject: "Reset your password", Body: body}
}

// Bytes renders m with RFC 5322 headers and CRLF line endings.
func (c *Composer) Bytes(m Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + c.from.String() + "\r\n")
	b.WriteString("To: " + (&mail.Address{Address: m.To}).String() + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func (c *Composer) link(path, token string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}

func greeting(user auth.UserSummary) string {
	name := strings.TrimSpace(user.DisplayName)
	if name == "" {
		return "Hello,\n\n"
	}
	return "Hello " + name + ",\n\n"
}

// formatDuration renders an expiry such as "1 hour", "2 days" or "30 minutes".
func formatDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d >= time.Hour:
		return plural(int(d.Hours()), "hour")
	default:
		return plural(int(d.Minutes()), "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
