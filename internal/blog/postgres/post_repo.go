// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package postgres implements blog.PostRepository on PostgreSQL.
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

	"github.com/quillblog/quill/internal/blog"
	"github.com/quillblog/quill/internal/store"
)

const postColumns = `id, title, content, owner_id, created_at, updated_at`

// PostRepository implements blog.PostRepository using PostgreSQL.
type PostRepository struct {
	db store.DB
}

// NewPostRepository creates a new PostRepository.
func NewPostRepository(db store.DB) *PostRepository {
	return &PostRepository{db: db}
}

// Create stores a new post. An owner that does not exist fails with OWNER_NOT_FOUND.
func (r *PostRepository) Create(ctx context.Context, post *blog.Post) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO posts (id, title, content, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		post.ID.String(),
		post.Title,
		post.Content,
		post.OwnerID.String(),
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.Code(blog.CodeOwnerNotFound).
				With("owner_id", post.OwnerID.String()).
				Wrap(blog.ErrNotFound)
		}
		return oops.Code("POST_CREATE_FAILED").
			With("operation", "insert post").
			With("post_id", post.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a post by ID.
func (r *PostRepository) GetByID(ctx context.Context, id ulid.ULID) (*blog.Post, error) {
	row := r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id.String())
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blog.PostNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("POST_GET_FAILED").
			With("operation", "get post by id").
			With("post_id", id.String()).
			Wrap(err)
	}
	return post, nil
}

// Update replaces title and content. owner_id and created_at never change.
func (r *PostRepository) Update(ctx context.Context, id ulid.ULID, in blog.PostInput, updatedAt time.Time) (*blog.Post, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE posts SET title = $2, content = $3, updated_at = $4
		WHERE id = $1
		RETURNING `+postColumns,
		id.String(), in.Title, in.Content, updatedAt)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, blog.PostNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("POST_UPDATE_FAILED").
			With("operation", "update post").
			With("post_id", id.String()).
			Wrap(err)
	}
	return post, nil
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").
			With("operation", "delete post").
			With("post_id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return blog.PostNotFound(id)
	}
	return nil
}

// ListRecent returns posts newest first.
func (r *PostRepository) ListRecent(ctx context.Context, limit, offset int) ([]*blog.Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", "list recent posts").Wrap(err)
	}
	return collectPosts(rows, "list recent posts")
}

// ListByOwner returns one owner's posts newest first.
func (r *PostRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID, limit, offset int) ([]*blog.Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ownerID.String(), limit, offset)
	if err != nil {
		return nil, oops.Code("POST_LIST_FAILED").
			With("operation", "list posts by owner").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}
	return collectPosts(rows, "list posts by owner")
}

func collectPosts(rows pgx.Rows, operation string) ([]*blog.Post, error) {
	defer rows.Close()

	posts := make([]*blog.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, oops.Code("POST_LIST_FAILED").With("operation", operation).Wrap(err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("POST_LIST_FAILED").With("operation", operation).Wrap(err)
	}
	return posts, nil
}

// scanPost reads one postColumns row. pgx.ErrNoRows is returned unwrapped.
func scanPost(row pgx.Row) (*blog.Post, error) {
	var (
		idStr, ownerStr string
		p               blog.Post
	)
	if err := row.Scan(&idStr, &p.Title, &p.Content, &ownerStr, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}

	var err error
	if p.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("POST_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if p.OwnerID, err = ulid.Parse(ownerStr); err != nil {
		return nil, oops.Code("POST_INVALID_OWNER_ID").With("owner_id", ownerStr).Wrap(err)
	}
	// TIMESTAMPTZ scans in the session time zone.
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

var _ blog.PostRepository = (*PostRepository)(nil)
