// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authcore/pkg/errutil"
)

// dummyPasswordHash is the fallback when the hasher cannot produce a dummy digest.
//
//nolint:gosec // G101: intentionally fake hash for timing parity, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// DefaultMailTimeout bounds a single asynchronous mail dispatch.
const DefaultMailTimeout = 10 * time.Second

// Status messages returned by operations that do not issue tokens.
const (
	MsgResetRequested     = "If an account exists for that email, a password reset link has been sent."
	MsgVerificationResent = "If an account exists for that email and it is not yet verified, a verification link has been sent."
	MsgPasswordReset      = "Password has been reset."
	MsgPasswordChanged    = "Password changed."
	MsgEmailVerified      = "Email verified."
	MsgLoggedOut          = "Logged out."
	MsgSessionRevoked     = "Session revoked."
	MsgAllSessionsRevoked = "All sessions revoked."
)

// Operation names reported to Observer.
const (
	OpRegister           = "register"
	OpLogin              = "login"
	OpLogout             = "logout"
	OpRefresh            = "refresh"
	OpAuthenticate       = "authenticate"
	OpForgotPassword     = "forgot_password"
	OpResetPassword      = "reset_password"
	OpChangePassword     = "change_password"
	OpVerifyEmail        = "verify_email"
	OpResendVerification = "resend_verification"
	OpListSessions       = "list_sessions"
	OpRevokeSession      = "revoke_session"
	OpRevokeAllSessions  = "revoke_all_sessions"
)

// ServiceConfig holds the tunables of Service.
type ServiceConfig struct {
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
	RememberMeTTL  time.Duration
	ResetTokenTTL  time.Duration
	VerifyTokenTTL time.Duration
	MailTimeout    time.Duration

	// RevokeSessionsOnPasswordChange makes ChangePassword revoke every other
	// session of the user, as ResetPassword always does.
	RevokeSessionsOnPasswordChange bool

	// SelfAssignableRoles are the roles a caller may request at registration.
	SelfAssignableRoles []Role

	// Now is the service clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultServiceConfig returns the default tunables.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AccessTokenTTL:      DefaultAccessTokenTTL,
		SessionTTL:          DefaultSessionTTL,
		RememberMeTTL:       DefaultRememberMeTTL,
		ResetTokenTTL:       DefaultResetTokenTTL,
		VerifyTokenTTL:      DefaultVerifyTokenTTL,
		MailTimeout:         DefaultMailTimeout,
		SelfAssignableRoles: []Role{RoleViewer, RoleEditor},
	}
}

// Validate checks that every TTL is positive.
func (c ServiceConfig) Validate() error {
	ttls := []struct {
		name  string
		value time.Duration
	}{
		{"access_token_ttl", c.AccessTokenTTL},
		{"session_ttl", c.SessionTTL},
		{"remember_me_ttl", c.RememberMeTTL},
		{"reset_token_ttl", c.ResetTokenTTL},
		{"verify_token_ttl", c.VerifyTokenTTL},
		{"mail_timeout", c.MailTimeout},
	}
	for _, ttl := range ttls {
		if ttl.value <= 0 {
			return oops.Code("AUTH_CONFIG_INVALID").
				With("field", ttl.name).
				With("value", ttl.value).
				Errorf("%s must be positive", ttl.name)
		}
	}
	for _, role := range c.SelfAssignableRoles {
		if _, err := ParseRole(string(role)); err != nil || role == "" {
			return oops.Code("AUTH_CONFIG_INVALID").With("field", "self_assignable_roles").Errorf("unknown role %q", role)
		}
	}
	return nil
}

// ServiceDeps are the collaborators of Service. EmailPolicy, Observer and
// Logger are optional.
type ServiceDeps struct {
	Users       UserRepository
	Sessions    SessionRepository
	ResetTokens ResetTokenRepository
	Attempts    LoginAttemptTracker
	Hasher      PasswordHasher
	Tokens      TokenCodec
	Mailer      Mailer
	EmailPolicy *EmailPolicy
	Observer    Observer
	Logger      *slog.Logger
}

// Service implements the authentication and session use cases. It is safe for
// concurrent use.
type Service struct {
	cfg      ServiceConfig
	users    UserRepository
	sessions SessionRepository
	resets   *ResetTokenStore
	attempts LoginAttemptTracker
	hasher   PasswordHasher
	tokens   TokenCodec
	mailer   Mailer
	policy   *EmailPolicy
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	// dummyHash is verified against when the email is unknown, so unknown and
	// known emails cost the same.
	dummyOnce sync.Once
	dummyHash string

	mailMu     sync.Mutex
	mailClosed bool
	mailWG     sync.WaitGroup
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig, deps ServiceDeps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	required := []struct {
		name string
		nil  bool
	}{
		{"users", deps.Users == nil},
		{"sessions", deps.Sessions == nil},
		{"reset tokens", deps.ResetTokens == nil},
		{"attempts", deps.Attempts == nil},
		{"hasher", deps.Hasher == nil},
		{"tokens", deps.Tokens == nil},
		{"mailer", deps.Mailer == nil},
	}
	for _, dep := range required {
		if dep.nil {
			return nil, oops.Code("AUTH_SERVICE_INVALID").With("dependency", dep.name).Errorf("%s dependency is required", dep.name)
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	resets, err := NewResetTokenStore(deps.ResetTokens, now)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		users:    deps.Users,
		sessions: deps.Sessions,
		resets:   resets,
		attempts: deps.Attempts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		policy:   deps.EmailPolicy,
		observer: deps.Observer,
		logger:   deps.Logger,
		now:      now,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// dummy returns a digest produced with the configured hasher parameters.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(ulid.Make().String())
		if err != nil {
			hash = dummyPasswordHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// UserSummary is the public view of a User.
type UserSummary struct {
	ID            ulid.ULID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Summary returns the public view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:            u.ID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// TokenPair is an access token plus the refresh secret that renews it.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int64     `json:"expiresIn"` // seconds until the access token expires
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthResult is returned by operations that start or renew a session.
type AuthResult struct {
	User   UserSummary `json:"user"`
	Tokens TokenPair   `json:"tokens"`
}

// StatusResult is returned by operations that only report a status.
type StatusResult struct {
	Message string `json:"message"`
}

// SessionSummary is the public view of an active session.
type SessionSummary struct {
	ID         ulid.ULID `json:"id"`
	DeviceInfo string    `json:"deviceInfo"`
	RememberMe bool      `json:"rememberMe"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

// Close waits for in-flight mail dispatches to finish or for ctx to end.
// Mail requested after Close is dropped.
func (s *Service) Close(ctx context.Context) error {
	s.mailMu.Lock()
	s.mailClosed = true
	s.mailMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.mailWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

// observe reports the outcome of op.
func (s *Service) observe(op string, err error) {
	s.observer.AuthOperation(op, outcomeOf(err))
}

// fail logs an unexpected failure and returns the opaque internal error.
func (s *Service) fail(ctx context.Context, operation string, err error) error {
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", oops.With("operation", operation).Wrap(err))
	return internalError(operation)
}

// sessionTTL returns the refresh lifetime for the remember-me class.
func (s *Service) sessionTTL(rememberMe bool) time.Duration {
	if rememberMe {
		return s.cfg.RememberMeTTL
	}
	return s.cfg.SessionTTL
}

// newSession creates and stores a session for user and issues its token pair.
func (s *Service) newSession(ctx context.Context, user *User, deviceInfo string, rememberMe bool) (*Session, TokenPair, error) {
	secret, hash, err := s.tokens.IssueRefreshSecret()
	if err != nil {
		return nil, TokenPair{}, err
	}
	session, err := NewSession(user.ID, hash, deviceInfo, rememberMe, s.sessionTTL(rememberMe), s.now())
	if err != nil {
		return nil, TokenPair{}, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.tokenPair(user, session, secret)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return session, pair, nil
}

// tokenPair issues the access token bound to session and pairs it with secret.
func (s *Service) tokenPair(user *User, session *Session, secret string) (TokenPair, error) {
	access, expiresAt, err := s.tokens.IssueAccessToken(user.ID, user.Role, session.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	expiresIn := int64(expiresAt.Sub(s.now()) / time.Second)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     secret,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        expiresIn,
		AccessExpiresAt:  expiresAt,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

type mailKind string

const (
	mailVerification mailKind = "verification"
	mailReset        mailKind = "password_reset"
)

// dispatchMail sends a token email without blocking the caller. The send runs
// on a context detached from the request and bounded by MailTimeout.
func (s *Service) dispatchMail(ctx context.Context, kind mailKind, user UserSummary, token string, expiresIn time.Duration) {
	s.mailMu.Lock()
	if s.mailClosed {
		s.mailMu.Unlock()
		s.logger.WarnContext(ctx, "mail dropped after shutdown", "kind", string(kind), "user_id", user.ID.String())
		return
	}
	s.mailWG.Add(1)
	s.mailMu.Unlock()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.MailTimeout)
	go func() {
		defer s.mailWG.Done()
		defer cancel()

		var err error
		switch kind {
		case mailVerification:
			err = s.mailer.SendVerificationEmail(sendCtx, user, token, expiresIn)
		case mailReset:
			err = s.mailer.SendResetEmail(sendCtx, user, token, expiresIn)
		}
		if err != nil {
			s.logger.WarnContext(sendCtx, "mail dispatch failed",
				"kind", string(kind),
				"user_id", user.ID.String(),
				"error", err,
			)
			s.observer.AuthOperation("mail_"+string(kind), string(KindInternal))
			return
		}
		s.observer.AuthOperation("mail_"+string(kind), OutcomeSuccess)
	}()
}

// issueAndSend issues a token for purpose and dispatches the matching email.
// Failures are logged; the caller-visible result never depends on them.
func (s *Service) issueAndSend(ctx context.Context, user *User, purpose Purpose) {
	ttl := s.cfg.VerifyTokenTTL
	kind := mailVerification
	if purpose == PurposePasswordReset {
		ttl = s.cfg.ResetTokenTTL
		kind = mailReset
	}

	secret, _, err := s.resets.Issue(ctx, user.ID, purpose, ttl)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "issue token failed", oops.
			With("user_id", user.ID.String()).
			With("purpose", purpose).
			Wrap(err))
		return
	}
	s.dispatchMail(ctx, kind, user.Summary(), secret, ttl)
}
