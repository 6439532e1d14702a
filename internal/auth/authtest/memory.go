// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package authtest provides in-memory auth collaborators for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/auth"
)

// UserRepository is an in-memory auth.UserRepository with the same
// case-insensitive uniqueness rules as the PostgreSQL store.
type UserRepository struct {
	mu    sync.Mutex
	users map[ulid.ULID]auth.User
}

// NewUserRepository returns an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[ulid.ULID]auth.User)}
}

// Len returns the number of stored users.
func (r *UserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *UserRepository) conflict(id ulid.ULID, username, email string) error {
	for _, u := range r.users {
		if u.ID == id {
			continue
		}
		if username != "" && strings.EqualFold(u.Username, username) {
			return auth.UsernameTaken(username)
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return auth.EmailTaken()
		}
	}
	return nil
}

func notFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// Create implements auth.UserRepository.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(user.ID, user.Username, user.Email); err != nil {
		return err
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID implements auth.UserRepository.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	return &u, nil
}

// GetByEmail implements auth.UserRepository.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, notFound("email", email)
}

// GetByUsername implements auth.UserRepository.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, notFound("username", username)
}

// UpdateProfile implements auth.UserRepository.
func (r *UserRepository) UpdateProfile(_ context.Context, id ulid.ULID, patch auth.UserPatch) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	var username, email string
	if patch.Username != nil {
		username = *patch.Username
	}
	if patch.Email != nil {
		email = *patch.Email
	}
	if err := r.conflict(id, username, email); err != nil {
		return nil, err
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.AvatarRef != nil {
		u.AvatarRef = *patch.AvatarRef
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return &u, nil
}

// UpdatePassword implements auth.UserRepository.
func (r *UserRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return notFound("id", id.String())
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// UpdateLoginState implements auth.UserRepository.
func (r *UserRepository) UpdateLoginState(_ context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return notFound("id", id.String())
	}
	u.FailedAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	r.users[id] = u
	return nil
}

// Notification is one captured reset notification.
type Notification struct {
	UserID ulid.ULID
	Email  string
	Link   string
}

// Notifier records reset notifications instead of sending them.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
	// Err, when set, is returned from every send after recording it.
	Err error
}

// SendPasswordReset implements auth.Notifier.
func (n *Notifier) SendPasswordReset(_ context.Context, user *auth.User, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{UserID: user.ID, Email: user.Email, Link: link})
	return n.Err
}

// Sent returns a copy of the captured notifications.
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Clock is a settable clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Secret returns a fixed 32-byte signing secret for tests.
func Secret() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

var (
	_ auth.UserRepository = (*UserRepository)(nil)
	_ auth.Notifier       = (*Notifier)(nil)
)
