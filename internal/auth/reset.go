// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = 30 * time.Minute

// ResetTokenService mints and verifies password reset tokens.
//
// Tokens are signed, not stored. Completing a reset does not revoke other
// reset tokens issued for the same account before it; they lapse on their own.
type ResetTokenService struct {
	ns         namespace
	defaultTTL time.Duration
	clock      Clock
}

// NewResetTokenService derives the reset signing key from secret.
// ttl <= 0 uses DefaultResetTTL. A nil clock uses time.Now.
func NewResetTokenService(secret []byte, ttl time.Duration, clock Clock) (*ResetTokenService, error) {
	ns, err := deriveNamespace(secret, KindReset)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResetTokenService{ns: ns, defaultTTL: ttl, clock: clock}, nil
}

// Issue mints a token for userID valid for ttl, or the default TTL when ttl <= 0.
func (s *ResetTokenService) Issue(userID ulid.ULID, ttl time.Duration) (string, time.Time, error) {
	if userID.IsZero() {
		return "", time.Time{}, oops.Code("RESET_ISSUE_FAILED").Errorf("user id is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.clock().UTC()
	expiresAt := now.Add(ttl)

	token, err := s.ns.sign(userID, now, expiresAt)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify returns the user the token was issued for. Failures carry a
// TokenError with reason malformed, signature_invalid or expired.
func (s *ResetTokenService) Verify(token string) (ulid.ULID, error) {
	userID, _, err := s.ns.verify(token, s.clock())
	return userID, err
}
