// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"time"
)

// Login throttling configuration.
const (
	// LockoutDuration is how long an account stays locked after too many failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of consecutive failures that locks the account.
	LockoutThreshold = 7
)

// IsLockedOut returns true if lockedUntil is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// LockoutRemaining returns how long the lock at lockedUntil still holds, or
// zero when the account is not locked.
func LockoutRemaining(lockedUntil *time.Time, now time.Time) time.Duration {
	if !IsLockedOut(lockedUntil, now) {
		return 0
	}
	return lockedUntil.Sub(now)
}

// ComputeLockoutTime returns the lockout deadline for the given failure count,
// or nil below the threshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration).UTC()
	return &lockout
}

// ResetOnSuccess returns the login state to store after a successful login.
func ResetOnSuccess() (int, *time.Time) {
	return 0, nil
}
