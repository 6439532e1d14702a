// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package blog

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quillblog/quill/internal/access"
	"github.com/quillblog/quill/internal/auth"
)

var tracer = otel.Tracer("quill/blog")

// Authors resolves a username to its account for author listings.
type Authors interface {
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
}

// Service provides post authoring and listings.
type Service struct {
	posts   PostRepository
	authors Authors
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service.
func NewService(posts PostRepository, authors Authors, opts ...Option) (*Service, error) {
	if posts == nil {
		return nil, oops.Code("BLOG_INVALID_CONFIG").Errorf("post repository is required")
	}
	if authors == nil {
		return nil, oops.Code("BLOG_INVALID_CONFIG").Errorf("author lookup is required")
	}
	s := &Service{posts: posts, authors: authors, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("BLOG_INVALID_CONFIG").Errorf("logger is required")
	}
	return s, nil
}

// Create publishes a post owned by the caller.
func (s *Service) Create(ctx context.Context, id *access.Identity, in PostInput) (post *Post, err error) {
	ctx, span := tracer.Start(ctx, "blog.create")
	defer func() { endSpan(span, err) }()

	if err := access.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	post = &Post{
		ID:        ulid.Make(),
		Title:     in.Title,
		Content:   in.Content,
		OwnerID:   id.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("post.id", post.ID.String()))
	s.logger.InfoContext(ctx, "post created", "post_id", post.ID.String(), "user_id", id.UserID.String())
	return post, nil
}

// Get returns a post by id. Posts are public.
func (s *Service) Get(ctx context.Context, postID ulid.ULID) (*Post, error) {
	return s.posts.GetByID(ctx, postID)
}

// Update replaces title and content of a post the caller owns.
func (s *Service) Update(ctx context.Context, id *access.Identity, postID ulid.ULID, in PostInput) (post *Post, err error) {
	ctx, span := tracer.Start(ctx, "blog.update", trace.WithAttributes(attribute.String("post.id", postID.String())))
	defer func() { endSpan(span, err) }()

	if _, err := s.owned(ctx, id, postID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	post, err = s.posts.Update(ctx, postID, in, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "post updated", "post_id", postID.String(), "user_id", id.UserID.String())
	return post, nil
}

// Delete removes a post the caller owns.
func (s *Service) Delete(ctx context.Context, id *access.Identity, postID ulid.ULID) (err error) {
	ctx, span := tracer.Start(ctx, "blog.delete", trace.WithAttributes(attribute.String("post.id", postID.String())))
	defer func() { endSpan(span, err) }()

	if _, err := s.owned(ctx, id, postID); err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", postID.String(), "user_id", id.UserID.String())
	return nil
}

// owned loads a post and checks the caller owns it. Authentication is
// checked first so anonymous callers learn nothing about the post.
func (s *Service) owned(ctx context.Context, id *access.Identity, postID ulid.ULID) (*Post, error) {
	if err := access.RequireAuthenticated(id); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := access.RequireOwner(id, post); err != nil {
		s.logger.DebugContext(ctx, "post mutation denied",
			"post_id", postID.String(),
			"user_id", id.UserID.String())
		return nil, err
	}
	return post, nil
}

// ListRecent returns the newest posts.
func (s *Service) ListRecent(ctx context.Context, page Page) ([]*Post, error) {
	page = page.normalize()
	return s.posts.ListRecent(ctx, page.Limit, page.Offset)
}

// ListByAuthor returns the newest posts of the user with username.
func (s *Service) ListByAuthor(ctx context.Context, username string, page Page) (*auth.User, []*Post, error) {
	author, err := s.authors.GetByUsername(ctx, username)
	if err != nil {
		if auth.IsNotFound(err) {
			return nil, nil, oops.Code(CodeUserNotFound).With("username", username).Wrap(ErrNotFound)
		}
		return nil, nil, oops.Code("BLOG_LIST_FAILED").With("operation", "get author").Wrap(err)
	}
	page = page.normalize()
	posts, err := s.posts.ListByOwner(ctx, author.ID, page.Limit, page.Offset)
	if err != nil {
		return nil, nil, err
	}
	return author, posts, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
