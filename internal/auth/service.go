// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillblog/quill/internal/access"
)

// dummyPasswordHash is verified against when no account matches the email, so
// an unknown email costs the same as a wrong password. No password matches it.
//
//nolint:gosec // G101: intentionally fake digest for timing parity, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string
	Password string
	Remember bool
}

// AccountUpdate lists profile fields to change. Nil fields are left untouched.
type AccountUpdate struct {
	Username  *string
	Email     *string
	AvatarRef *string
}

// Service provides registration, login and account operations.
type Service struct {
	users    UserRepository
	hasher   PasswordHasher
	sessions *SessionManager
	dummy    string
	opts     options
}

// NewAuthService creates a Service.
func NewAuthService(users UserRepository, hasher PasswordHasher, sessions *SessionManager, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	}
	o := buildOptions(opts)
	if o.logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}

	dummy := dummyPasswordHash
	if d, ok := hasher.(interface{ DummyHash() string }); ok {
		dummy = d.DummyHash()
	}

	return &Service{users: users, hasher: hasher, sessions: sessions, dummy: dummy, opts: o}, nil
}

// Register creates an account. A taken username or email fails with
// USERNAME_TAKEN or EMAIL_TAKEN and nothing is written.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	now := s.opts.clock().UTC()
	user = &User{
		ID:           ulid.Make(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		AvatarRef:    DefaultAvatarRef,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if IsUniqueViolation(err) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	s.opts.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// Login verifies credentials and issues a session token. An unknown email and
// a wrong password fail identically with AUTH_INVALID_CREDENTIALS.
func (s *Service) Login(ctx context.Context, in LoginInput) (user *User, token SessionToken, err error) {
	ctx, span := tracer.Start(ctx, "auth.login", trace.WithAttributes(attribute.Bool("auth.remember", in.Remember)))
	defer func() { endSpan(span, err) }()

	user, lookupErr := s.lookupForLogin(ctx, strings.TrimSpace(in.Email))
	if lookupErr != nil {
		s.opts.metrics.LoginAttempt(LoginError)
		return nil, SessionToken{}, lookupErr
	}

	targetHash := s.dummy
	if user != nil {
		targetHash = user.PasswordHash
	}

	// Always verify so that every path does the same work.
	valid, verifyErr := s.hasher.Verify(in.Password, targetHash)
	if verifyErr != nil {
		if user != nil {
			s.opts.logger.WarnContext(ctx, "stored password digest is unreadable",
				"operation", "verify password",
				"user_id", user.ID.String(),
				"error", verifyErr.Error())
		}
		valid = false
	}

	now := s.opts.clock()
	// A locked account answers the same whether or not the password matched.
	if user != nil && user.IsLocked(now) {
		s.opts.metrics.LoginAttempt(LoginLocked)
		return nil, SessionToken{}, oops.Code(CodeAccountLocked).
			With("locked_until", user.LockedUntil).
			With(RetryAfterKey, LockoutRemaining(user.LockedUntil, now)).
			Errorf("account is temporarily locked")
	}

	if user == nil || !valid {
		if user != nil {
			user.RecordFailure(now)
			s.saveLoginState(ctx, user, "record_failure")
		}
		s.opts.metrics.LoginAttempt(LoginInvalidCredentials)
		return nil, SessionToken{}, invalidCredentials()
	}

	if user.FailedAttempts > 0 || user.LockedUntil != nil {
		user.RecordSuccess()
		s.saveLoginState(ctx, user, "record_success")
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, in.Password)
	}

	token, err = s.sessions.Issue(user.ID, in.Remember)
	if err != nil {
		s.opts.metrics.LoginAttempt(LoginError)
		return nil, SessionToken{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	s.opts.metrics.LoginAttempt(LoginSucceeded)
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	s.opts.logger.DebugContext(ctx, "user logged in", "user_id", user.ID.String(), "remember", in.Remember)
	return user, token, nil
}

// lookupForLogin returns (nil, nil) when no account matches email.
func (s *Service) lookupForLogin(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, nil
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return nil, oops.Code("AUTH_LOGIN_FAILED").
		With("operation", "get user by email").
		Wrap(err)
}

func (s *Service) saveLoginState(ctx context.Context, user *User, operation string) {
	if err := s.users.UpdateLoginState(ctx, user.ID, user.FailedAttempts, user.LockedUntil); err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort login state update failed",
			"operation", operation,
			"user_id", user.ID.String(),
			"error", err.Error())
	}
}

func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.users.UpdatePassword(ctx, user.ID, newHash)
	}
	if err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort password hash upgrade failed",
			"operation", "upgrade_hash",
			"user_id", user.ID.String(),
			"error", err.Error())
		return
	}
	user.PasswordHash = newHash
}

// ResolveSession returns the identity of a session token.
func (s *Service) ResolveSession(ctx context.Context, token string) (*access.Identity, error) {
	id, err := s.sessions.Resolve(token)
	if err != nil {
		recordTokenRejection(ctx, s.opts, err)
		return nil, err
	}
	return id, nil
}

// Logout records the end of a session. Tokens are stateless, so the caller
// must discard the client's copy.
func (s *Service) Logout(ctx context.Context, id *access.Identity) {
	if id == nil {
		return
	}
	s.opts.logger.DebugContext(ctx, "user logged out", "user_id", id.UserID.String())
}

// CurrentUser loads the account behind id.
func (s *Service) CurrentUser(ctx context.Context, id *access.Identity) (*User, error) {
	if err := access.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The token outlived its account.
			return nil, oops.Code(access.CodeUnauthorized).
				With("user_id", id.UserID.String()).
				Wrap(access.ErrUnauthorized)
		}
		return nil, oops.Code("AUTH_ACCOUNT_LOAD_FAILED").With("operation", "get user by id").Wrap(err)
	}
	return user, nil
}

// UpdateAccount changes the caller's username, email or avatar reference.
func (s *Service) UpdateAccount(ctx context.Context, id *access.Identity, upd AccountUpdate) (*User, error) {
	if err := access.RequireAuthenticated(id); err != nil {
		return nil, err
	}

	var patch UserPatch
	if upd.Username != nil {
		v := strings.TrimSpace(*upd.Username)
		if err := ValidateUsername(v); err != nil {
			return nil, err
		}
		patch.Username = &v
	}
	if upd.Email != nil {
		v := strings.TrimSpace(*upd.Email)
		if err := ValidateEmail(v); err != nil {
			return nil, err
		}
		patch.Email = &v
	}
	if upd.AvatarRef != nil {
		if err := ValidateAvatarRef(*upd.AvatarRef); err != nil {
			return nil, err
		}
		patch.AvatarRef = upd.AvatarRef
	}

	if patch.Empty() {
		return s.CurrentUser(ctx, id)
	}

	user, err := s.users.UpdateProfile(ctx, id.UserID, patch)
	if err != nil {
		if IsUniqueViolation(err) || IsNotFound(err) {
			return nil, err
		}
		return nil, oops.Code("AUTH_ACCOUNT_UPDATE_FAILED").
			With("operation", "update profile").
			With("user_id", id.UserID.String()).
			Wrap(err)
	}
	s.opts.logger.InfoContext(ctx, "account updated", "user_id", id.UserID.String())
	return user, nil
}

// ChangePassword replaces the caller's password after re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id *access.Identity, current, next string) error {
	user, err := s.CurrentUser(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").With("operation", "verify password").Wrap(err)
	}
	if !ok {
		return invalidCredentials()
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").With("operation", "hash password").Wrap(err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return oops.Code("AUTH_PASSWORD_CHANGE_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	s.opts.logger.InfoContext(ctx, "password changed", "user_id", user.ID.String())
	return nil
}
