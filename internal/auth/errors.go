// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUniqueViolation is wrapped by every error caused by a username or email
// already belonging to another account.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Error codes surfaced by this package.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeValidation         = "VALIDATION_FAILED"
)

// RetryAfterKey is the error context key holding how long a locked account
// stays locked.
const RetryAfterKey = "retry_after"

// RetryAfter returns the wait carried by an AUTH_ACCOUNT_LOCKED error, or zero.
func RetryAfter(err error) time.Duration {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	d, _ := oopsErr.Context()[RetryAfterKey].(time.Duration)
	return d
}

// invalidCredentials is the single failure returned for an unknown email and a
// wrong password alike.
func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("login unsuccessful: check email and password")
}

// UsernameTaken builds the error a repository returns when the username is in use.
func UsernameTaken(username string) error {
	return oops.Code(CodeUsernameTaken).
		With("username", username).
		Wrapf(ErrUniqueViolation, "that username is taken")
}

// EmailTaken builds the error a repository returns when the email is in use.
func EmailTaken() error {
	return oops.Code(CodeEmailTaken).Wrapf(ErrUniqueViolation, "that email is taken")
}

// IsUniqueViolation reports whether err was caused by a duplicate username or email.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// validationError reports a single bad input field.
func validationError(field, msg string) error {
	return oops.Code(CodeValidation).With("field", field).Errorf("%s", msg)
}
