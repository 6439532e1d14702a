// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/access"
)

// Default session lifetimes.
const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultRememberTTL = 30 * 24 * time.Hour
)

// SessionToken is an issued session credential.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
	// Persistent is set for "remember me" logins; the cookie outlives the browser session.
	Persistent bool
}

// SessionConfig controls session lifetimes.
type SessionConfig struct {
	TTL         time.Duration
	RememberTTL time.Duration
}

// SessionManager issues and resolves stateless signed session tokens.
//
// Tokens are self-contained and not stored anywhere, so logout only discards
// the client's copy. A stolen token stays valid until it expires; keep TTLs
// short if that matters more than convenience.
type SessionManager struct {
	ns    namespace
	cfg   SessionConfig
	clock Clock
}

// NewSessionManager derives the session signing key from secret.
// Zero durations in cfg fall back to the defaults. A nil clock uses time.Now.
func NewSessionManager(secret []byte, cfg SessionConfig, clock Clock) (*SessionManager, error) {
	ns, err := deriveNamespace(secret, KindSession)
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = DefaultRememberTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{ns: ns, cfg: cfg, clock: clock}, nil
}

// Issue mints a session token for userID that expires exactly the TTL after
// the clock's current time.
func (m *SessionManager) Issue(userID ulid.ULID, remember bool) (SessionToken, error) {
	if userID.IsZero() {
		return SessionToken{}, oops.Code("SESSION_ISSUE_FAILED").Errorf("user id is required")
	}
	ttl := m.cfg.TTL
	if remember {
		ttl = m.cfg.RememberTTL
	}
	now := m.clock().UTC()
	expiresAt := now.Add(ttl)

	value, err := m.ns.sign(userID, now, expiresAt)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Value: value, ExpiresAt: expiresAt, Persistent: remember}, nil
}

// Resolve returns the identity carried by a valid token. It fails closed: any
// malformed, tampered, foreign or expired token yields no identity.
func (m *SessionManager) Resolve(token string) (*access.Identity, error) {
	userID, _, err := m.ns.verify(token, m.clock())
	if err != nil {
		return nil, err
	}
	return &access.Identity{UserID: userID}, nil
}
