// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package blog manages posts. Every mutation is checked against the caller's
// identity with access.RequireOwner.
package blog

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrNotFound is returned when a post or author does not exist.
var ErrNotFound = errors.New("not found")

// Error codes surfaced by this package.
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodePostNotFound  = "POST_NOT_FOUND"
	CodeOwnerNotFound = "OWNER_NOT_FOUND"
	CodeUserNotFound  = "USER_NOT_FOUND"
)

// MaxTitleLength is the longest title accepted, in characters.
const MaxTitleLength = 100

// Listing limits.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Post is a text entry written by one user.
type Post struct {
	ID        ulid.ULID
	Title     string
	Content   string
	OwnerID   ulid.ULID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerUserID implements access.Owned.
func (p *Post) OwnerUserID() ulid.ULID {
	return p.OwnerID
}

// PostInput is the authoring form for create and update.
type PostInput struct {
	Title   string
	Content string
}

// Validate trims the input and checks title and content.
func (in *PostInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return validationError("title", "title is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return validationError("title", "title must be at most 100 characters")
	}
	if strings.TrimSpace(in.Content) == "" {
		return validationError("content", "content is required")
	}
	return nil
}

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

// normalize clamps the page into the accepted range.
func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PostRepository persists posts.
type PostRepository interface {
	Create(ctx context.Context, post *Post) error
	GetByID(ctx context.Context, id ulid.ULID) (*Post, error)

	// Update replaces title and content, returning the stored row.
	Update(ctx context.Context, id ulid.ULID, in PostInput, updatedAt time.Time) (*Post, error)
	Delete(ctx context.Context, id ulid.ULID) error

	// ListRecent returns posts newest first.
	ListRecent(ctx context.Context, limit, offset int) ([]*Post, error)

	// ListByOwner returns one owner's posts newest first.
	ListByOwner(ctx context.Context, ownerID ulid.ULID, limit, offset int) ([]*Post, error)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// PostNotFound builds the error repositories return for a missing post.
func PostNotFound(id ulid.ULID) error {
	return oops.Code(CodePostNotFound).With("post_id", id.String()).Wrap(ErrNotFound)
}

func validationError(field, msg string) error {
	return oops.Code(CodeValidation).With("field", field).Errorf("%s", msg)
}
