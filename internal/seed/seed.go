// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package seed creates the users listed in a YAML seed file, typically the
// first administrator of a fresh deployment.
package seed

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/authcore/internal/auth"
)

// File is a seed file.
type File struct {
	Users []User `yaml:"users" json:"users" jsonschema:"minItems=1"`
}

// User is one seeded account. Exactly one of Password and PasswordEnv is set.
type User struct {
	Email       string `yaml:"email" json:"email" jsonschema:"minLength=3"`
	DisplayName string `yaml:"display_name" json:"display_name" jsonschema:"minLength=1,maxLength=100"`
	Role        string `yaml:"role,omitempty" json:"role,omitempty" jsonschema:"enum=VIEWER,enum=EDITOR,enum=ADMIN"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty" json:"password_env,omitempty" jsonschema:"pattern=^[A-Z_][A-Z0-9_]*$"`
	Verified    bool   `yaml:"verified,omitempty" json:"verified,omitempty"`
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is an operator-supplied CLI argument
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return f, nil
}

// Parse validates data against the seed schema and decodes it.
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, oops.Code("SEED_INVALID").Errorf("seed file is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(jsonTypes(doc)); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("SEED_INVALID").Wrap(err)
	}
	return &f, nil
}

// Result reports what Apply did, by normalized email.
type Result struct {
	Created []string
	Skipped []string
}

// Seeder creates seed users through a UserRepository.
type Seeder struct {
	users  auth.UserRepository
	hasher auth.PasswordHasher
	getenv func(string) string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithGetenv replaces os.Getenv for password_env lookups.
func WithGetenv(getenv func(string) string) Option {
	return func(s *Seeder) { s.getenv = getenv }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Seeder) { s.now = now }
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Seeder) { s.logger = logger }
}

// NewSeeder creates a Seeder.
func NewSeeder(users auth.UserRepository, hasher auth.PasswordHasher, opts ...Option) *Seeder {
	s := &Seeder{
		users:  users,
		hasher: hasher,
		getenv: os.Getenv,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply creates every user of f that does not exist yet. Existing emails are
// skipped and left untouched. Entries are validated before anything is
// written, so an invalid file creates nobody.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	users := make([]*auth.User, 0, len(f.Users))
	verified := make([]bool, 0, len(f.Users))
	for i, entry := range f.Users {
		user, err := s.build(entry)
		if err != nil {
			return nil, oops.With("index", i).With("email", entry.Email).Wrap(err)
		}
		users = append(users, user)
		verified = append(verified, entry.Verified)
	}

	res := &Result{}
	for i, user := range users {
		err := s.users.Create(ctx, user)
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			s.logger.InfoContext(ctx, "seed user exists, skipped", "email", user.Email)
			res.Skipped = append(res.Skipped, user.Email)
			continue
		case err != nil:
			return res, oops.Code("SEED_CREATE_FAILED").With("email", user.Email).Wrap(err)
		}
		if verified[i] {
			if err := s.users.MarkVerified(ctx, user.ID, s.now()); err != nil {
				return res, oops.Code("SEED_VERIFY_FAILED").With("email", user.Email).Wrap(err)
			}
		}
		s.logger.InfoContext(ctx, "seed user created",
			"email", user.Email,
			"user_id", user.ID.String(),
			"role", string(user.Role),
		)
		res.Created = append(res.Created, user.Email)
	}
	return res, nil
}

func (s *Seeder) build(entry User) (*auth.User, error) {
	password, err := s.password(entry)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	role, err := auth.ParseRole(entry.Role)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(entry.DisplayName)
	if err := auth.ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("SEED_HASH_FAILED").Wrap(err)
	}
	return auth.NewUser(entry.Email, hash, displayName, role, s.now())
}

func (s *Seeder) password(entry User) (string, error) {
	switch {
	case entry.Password != "" && entry.PasswordEnv != "":
		return "", oops.Code("SEED_INVALID").Errorf("password and password_env are mutually exclusive")
	case entry.Password != "":
		return entry.Password, nil
	case entry.PasswordEnv != "":
		v := s.getenv(entry.PasswordEnv)
		if v == "" {
			return "", oops.Code("SEED_INVALID").
				With("password_env", entry.PasswordEnv).
				Errorf("environment variable %s is empty", entry.PasswordEnv)
		}
		return v, nil
	default:
		return "", oops.Code("SEED_INVALID").Errorf("password or password_env is required")
	}
}
