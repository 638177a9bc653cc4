// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/holomush/authcore/internal/auth"
)

// Message kinds.
const (
	KindVerification = "verification"
	KindReset        = "password_reset"
)

// Message is one email captured by Outbox.
type Message struct {
	Kind      string
	To        string
	UserID    string
	Token     string
	ExpiresIn time.Duration
}

// Outbox is an auth.Mailer that records messages instead of sending them.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// SendVerificationEmail records a verification message.
func (o *Outbox) SendVerificationEmail(_ context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	o.add(Message{Kind: KindVerification, To: user.Email, UserID: user.ID.String(), Token: token, ExpiresIn: expiresIn})
	return nil
}

// SendResetEmail records a password reset message.
func (o *Outbox) SendResetEmail(_ context.Context, user auth.UserSummary, token string, expiresIn time.Duration) error {
	o.add(Message{Kind: KindReset, To: user.Email, UserID: user.ID.String(), Token: token, ExpiresIn: expiresIn})
	return nil
}

func (o *Outbox) add(m Message) {
	o.mu.Lock()
	o.messages = append(o.messages, m)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Messages returns a snapshot of the recorded messages.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}

// Last returns the most recent message of kind sent to email.
func (o *Outbox) Last(kind, email string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if m := o.messages[i]; m.Kind == kind && m.To == email {
			return m, true
		}
	}
	return Message{}, false
}

// Wait blocks until a message of kind for email is recorded or ctx ends.
func (o *Outbox) Wait(ctx context.Context, kind, email string) (Message, error) {
	for {
		if m, ok := o.Last(kind, email); ok {
			return m, nil
		}
		select {
		case <-o.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

var _ auth.Mailer = (*Outbox)(nil)
