// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package postgres implements auth.UserRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/store"
)

// Unique index names from the users migration.
const (
	usernameConstraint = "users_username_lower_key"
	emailConstraint    = "users_email_lower_key"
)

const userColumns = `id, username, email, password_hash, avatar_ref,
	failed_attempts, locked_until, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db  store.DB
	now func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// Create stores a new user. A duplicate username or email is reported with
// auth.UsernameTaken or auth.EmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, avatar_ref,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.AvatarRef,
		user.FailedAttempts,
		user.LockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueConflict(err, user.Username); conflict != nil {
			return conflict
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())
	return r.scanOne(row, "id", id.String())
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return r.scanOne(row, "email", email)
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return r.scanOne(row, "username", username)
}

// UpdateProfile applies patch in one statement. Nil fields keep their value.
func (r *UserRepository) UpdateProfile(ctx context.Context, id ulid.ULID, patch auth.UserPatch) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE users SET
			username   = COALESCE($2, username),
			email      = COALESCE($3, email),
			avatar_ref = COALESCE($4, avatar_ref),
			updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns,
		id.String(),
		patch.Username,
		patch.Email,
		patch.AvatarRef,
		r.now().UTC(),
	)

	user, err := scanUser(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, notFound("id", id.String())
	case err != nil:
		username := ""
		if patch.Username != nil {
			username = *patch.Username
		}
		if conflict := uniqueConflict(err, username); conflict != nil {
			return nil, conflict
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update profile").
			With("user_id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces only the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, r.now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

// UpdateLoginState records the failure counter and lockout deadline.
func (r *UserRepository) UpdateLoginState(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET failed_attempts = $2, locked_until = $3
		WHERE id = $1
	`, id.String(), failedAttempts, lockedUntil)
	if err != nil {
		return oops.Code("USER_UPDATE_LOGIN_STATE_FAILED").
			With("operation", "update login state").
			With("user_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return notFound("id", id.String())
	}
	return nil
}

func (r *UserRepository) scanOne(row pgx.Row, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(key, value)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			Wrap(err)
	}
	return user, nil
}

// scanUser reads one userColumns row. pgx.ErrNoRows is returned unwrapped.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr string
		u     auth.User
	)
	err := row.Scan(
		&idStr,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarRef,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}

	u.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	// TIMESTAMPTZ scans in the session time zone.
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	if u.LockedUntil != nil {
		locked := u.LockedUntil.UTC()
		u.LockedUntil = &locked
	}
	return &u, nil
}

func notFound(key, value string) error {
	return oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// uniqueConflict maps a unique violation on the users indexes to the auth
// conflict errors. It returns nil for any other error.
func uniqueConflict(err error, username string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usernameConstraint:
		return auth.UsernameTaken(username)
	case emailConstraint:
		return auth.EmailTaken()
	}
	return nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
