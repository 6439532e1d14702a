// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package access provides authorization for Quill.
//
// Authorization is ownership based: a request either carries an Identity
// resolved from a valid session or it does not, and a resource may only be
// mutated by the user that owns it. The checks are pure functions so services
// and HTTP handlers call them directly before any side effect.
package access

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error codes returned by the guard.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
)

var (
	// ErrUnauthorized means the request carries no valid identity.
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden means the identity is valid but does not own the resource.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated principal of a request.
type Identity struct {
	UserID ulid.ULID
}

// Owned is implemented by resources that belong to exactly one user.
type Owned interface {
	OwnerUserID() ulid.ULID
}

// RequireAuthenticated fails with UNAUTHORIZED unless id is a resolved identity.
func RequireAuthenticated(id *Identity) error {
	if id == nil || id.UserID.IsZero() {
		return oops.Code(CodeUnauthorized).Wrap(ErrUnauthorized)
	}
	return nil
}

// RequireOwner allows exactly the owner of r. No identity is UNAUTHORIZED;
// any other identity is FORBIDDEN.
func RequireOwner(id *Identity, r Owned) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	owner := r.OwnerUserID()
	if owner.IsZero() || owner != id.UserID {
		return oops.Code(CodeForbidden).
			With("user_id", id.UserID.String()).
			With("owner_id", owner.String()).
			Wrap(ErrForbidden)
	}
	return nil
}

// IsUnauthorized reports whether err is a missing-identity failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsForbidden reports whether err is an ownership failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
