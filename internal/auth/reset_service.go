// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
)

// NotifyTimeout bounds a single reset notification.
const NotifyTimeout = 30 * time.Second

// Notifier delivers the password reset link to the account owner. Delivery
// is best effort; the reset flow never reports notifier failures to the requester.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user *User, link string) error
}

// PasswordResetService runs the forgot-password flow.
type PasswordResetService struct {
	users    UserRepository
	hasher   PasswordHasher
	tokens   *ResetTokenService
	notifier Notifier
	baseURL  string
	opts     options
	pending  sync.WaitGroup
}

// NewPasswordResetService creates a PasswordResetService. baseURL is the
// public origin used to build reset links, e.g. https://blog.example.com.
func NewPasswordResetService(
	users UserRepository,
	hasher PasswordHasher,
	tokens *ResetTokenService,
	notifier Notifier,
	baseURL string,
	opts ...Option,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("reset token service is required")
	}
	if notifier == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("notifier is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("RESET_INVALID_CONFIG").With("base_url", baseURL).Errorf("base URL must be absolute")
	}
	o := buildOptions(opts)
	if o.logger == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("logger is required")
	}
	return &PasswordResetService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		opts:     o,
	}, nil
}

// RequestReset sends a reset link when an account has this email. The result
// is the same whether or not the account exists: no token is minted and no
// notification is sent for an unknown email. Delivery runs in the background
// so the response time does not depend on the mail server.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.request_reset")
	defer func() { endSpan(span, err) }()

	email = strings.TrimSpace(email)
	if email == "" {
		s.opts.metrics.PasswordReset(ResetUnknownEmail)
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.opts.metrics.PasswordReset(ResetUnknownEmail)
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, 0)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}

	link := s.baseURL + "/reset_password/" + url.PathEscape(token)
	s.pending.Add(1)
	go s.notify(context.WithoutCancel(ctx), user, link)

	s.opts.metrics.PasswordReset(ResetRequested)
	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	s.opts.logger.InfoContext(ctx, "password reset requested",
		"user_id", user.ID.String(),
		"expires_at", expiresAt)
	return nil
}

func (s *PasswordResetService) notify(ctx context.Context, user *User, link string) {
	defer s.pending.Done()
	ctx, cancel := context.WithTimeout(ctx, NotifyTimeout)
	defer cancel()

	if err := s.notifier.SendPasswordReset(ctx, user, link); err != nil {
		s.opts.logger.WarnContext(ctx, "best-effort reset notification failed",
			"operation", "send_reset_notification",
			"user_id", user.ID.String(),
			"error", err.Error())
	}
}

// Wait blocks until every reset notification started so far has finished,
// or ctx is done.
func (s *PasswordResetService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("RESET_DRAIN_FAILED").Wrap(ctx.Err())
	}
}

// ValidateToken returns the user a reset token was issued for.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (ulid.ULID, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		recordTokenRejection(ctx, s.opts, err)
		return ulid.ULID{}, err
	}
	return userID, nil
}

// ResetPassword sets a new password for the user a valid reset token was
// issued for, and clears any login lockout.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer func() { endSpan(span, err) }()

	userID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", userID.String()).
			Wrap(err)
	}

	// The password is already changed; a failure here only leaves a stale lockout.
	if lockErr := s.users.UpdateLoginState(ctx, userID, 0, nil); lockErr != nil {
		s.opts.logger.WarnContext(ctx, "best-effort lockout reset failed",
			"operation", "clear_lockout",
			"user_id", userID.String(),
			"error", lockErr.Error())
	}

	s.opts.metrics.PasswordReset(ResetCompleted)
	s.opts.logger.InfoContext(ctx, "password reset completed", "user_id", userID.String())
	return nil
}
