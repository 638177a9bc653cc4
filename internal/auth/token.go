// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token configuration.
const (
	SecretBytes        = 32 // 32 bytes = 43 base64url chars
	MinSigningKeyBytes = 32
	TokenTypeBearer    = "Bearer"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    ulid.ULID
	Role      Role
	SessionID ulid.ULID // zero when the token is not bound to a session
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal returns the authenticated identity carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role, SessionID: c.SessionID}
}

// TokenCodec issues and verifies stateless access tokens and opaque refresh secrets.
type TokenCodec interface {
	// IssueAccessToken signs a short-lived token carrying the user id, role and session id.
	IssueAccessToken(userID ulid.ULID, role Role, sessionID ulid.ULID, ttl time.Duration) (token string, expiresAt time.Time, err error)

	// VerifyAccessToken checks the signature and expiry and returns the claims.
	VerifyAccessToken(token string) (Claims, error)

	// IssueRefreshSecret returns a random opaque secret and the hash to persist.
	// The secret is shown to the caller once and never stored.
	IssueRefreshSecret() (secret, secretHash string, err error)
}

// GenerateSecret creates a random URL-safe secret and its hash.
// Returns (plaintext_secret, sha256_hex_hash, error).
func GenerateSecret() (secret, hash string, err error) {
	buf := make([]byte, SecretBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("AUTH_SECRET_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretBytes).
			Wrap(err)
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	return secret, HashSecret(secret), nil
}

// HashSecret computes the SHA256 hash of an opaque secret.
// This is what gets stored and looked up.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret checks if the plaintext secret matches the stored hash in constant time.
func VerifySecret(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(hash)) == 1
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role      Role   `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

// JWTCodec implements TokenCodec with HS256-signed JWTs.
type JWTCodec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// JWTOption configures a JWTCodec.
type JWTOption func(*JWTCodec)

// WithJWTClock overrides the codec's time source.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(c *JWTCodec) { c.now = now }
}

// NewJWTCodec creates a JWTCodec. The signing key must be at least MinSigningKeyBytes long.
func NewJWTCodec(signingKey []byte, issuer string, opts ...JWTOption) (*JWTCodec, error) {
	if len(signingKey) < MinSigningKeyBytes {
		return nil, oops.Code("AUTH_SIGNING_KEY_INVALID").
			With("min_bytes", MinSigningKeyBytes).
			Errorf("signing key must be at least %d bytes", MinSigningKeyBytes)
	}
	c := &JWTCodec{
		key:    append([]byte(nil), signingKey...),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IssueAccessToken signs an access token valid for ttl.
func (c *JWTCodec) IssueAccessToken(userID ulid.ULID, role Role, sessionID ulid.ULID, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_TTL_INVALID").With("ttl", ttl).Errorf("access token ttl must be positive")
	}
	now := c.now()
	// JWT NumericDate has second precision.
	expiresAt := now.Add(ttl).Truncate(time.Second)

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID.String(),
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	if sessionID.Compare(ulid.ULID{}) != 0 {
		claims.SessionID = sessionID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// VerifyAccessToken parses and validates an access token.
func (c *JWTCodec) VerifyAccessToken(token string) (Claims, error) {
	if token == "" {
		return Claims{}, oops.Code("AUTH_TOKEN_INVALID").Errorf("access token is empty")
	}

	parsed := &accessClaims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(_ *jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, oops.Code("AUTH_TOKEN_INVALID").Wrap(err)
	}

	userID, err := ulid.Parse(parsed.Subject)
	if err != nil {
		return Claims{}, oops.Code("AUTH_TOKEN_INVALID").With("claim", "sub").Wrap(err)
	}
	if _, err := ParseRole(string(parsed.Role)); err != nil || parsed.Role == "" {
		return Claims{}, oops.Code("AUTH_TOKEN_INVALID").With("claim", "role").Errorf("invalid role claim")
	}

	claims := Claims{
		UserID:    userID,
		Role:      parsed.Role,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.SessionID != "" {
		sid, err := ulid.Parse(parsed.SessionID)
		if err != nil {
			return Claims{}, oops.Code("AUTH_TOKEN_INVALID").With("claim", "sid").Wrap(err)
		}
		claims.SessionID = sid
	}
	return claims, nil
}

// IssueRefreshSecret returns a new opaque refresh secret and its hash.
func (c *JWTCodec) IssueRefreshSecret() (string, string, error) {
	return GenerateSecret()
}

// Compile-time interface check.
var _ TokenCodec = (*JWTCodec)(nil)
