// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// DefaultAvatarRef is assigned to accounts that never uploaded a picture.
const DefaultAvatarRef = "default.jpg"

// Field limits for user accounts.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 20
	MaxEmailLength    = 120
	MaxAvatarRefLen   = 20
	// MaxPasswordLength bounds the work a single login can force on the hasher.
	MaxPasswordLength = 1024
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is a registered account.
type User struct {
	ID             ulid.ULID
	Username       string
	Email          string
	PasswordHash   string
	AvatarRef      string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if the threshold is reached.
func (u *User) RecordFailure(now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts, now)
}

// RecordSuccess clears the failure counter and any lockout.
func (u *User) RecordSuccess() {
	u.FailedAttempts, u.LockedUntil = ResetOnSuccess()
}

// UserPatch lists the profile columns an account update may change.
// Nil fields are left untouched.
type UserPatch struct {
	Username  *string
	Email     *string
	AvatarRef *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.AvatarRef == nil
}

// UserRepository persists user accounts. Username and email lookups are
// case-insensitive; uniqueness is enforced by the store, which reports
// conflicts with UsernameTaken or EmailTaken.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateProfile applies patch in a single statement and returns the stored row.
	UpdateProfile(ctx context.Context, id ulid.ULID, patch UserPatch) (*User, error)

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateLoginState records the failure counter and lockout deadline.
	UpdateLoginState(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error
}

// ValidateUsername checks length and character rules.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case username == "":
		return validationError("username", "username cannot be empty")
	case n < MinUsernameLength || n > MaxUsernameLength:
		return validationError("username", "username must be between 3 and 20 characters")
	case !usernameRegex.MatchString(username):
		return validationError("username", "username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail checks that email is a single bare address within the column limit.
func ValidateEmail(email string) error {
	if email == "" {
		return validationError("email", "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return validationError("email", "email must be at most 120 characters")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("email", "email is not a valid address")
	}
	return nil
}

// ValidatePassword requires a non-empty password no longer than
// MaxPasswordLength bytes.
func ValidatePassword(password string) error {
	if password == "" {
		return validationError("password", "password is required")
	}
	if len(password) > MaxPasswordLength {
		return validationError("password", "password is too long")
	}
	return nil
}

// ValidateAvatarRef checks an avatar reference produced by the upload collaborator.
func ValidateAvatarRef(ref string) error {
	if ref == "" || len(ref) > MaxAvatarRefLen {
		return validationError("avatar_ref", "avatar reference must be 1 to 20 characters")
	}
	if strings.ContainsAny(ref, "/\\") {
		return validationError("avatar_ref", "avatar reference must be a bare file name")
	}
	return nil
}
