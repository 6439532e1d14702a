// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package blogtest provides an in-memory blog.PostRepository for tests.
package blogtest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/blog"
)

// PostRepository keeps posts in memory. When Owners is set, Create rejects
// posts whose owner it reports missing, like the foreign key does.
type PostRepository struct {
	mu    sync.Mutex
	posts map[ulid.ULID]blog.Post

	// Owners reports whether a user exists. Nil accepts every owner.
	Owners func(ulid.ULID) bool
}

// NewPostRepository returns an empty repository.
func NewPostRepository() *PostRepository {
	return &PostRepository{posts: make(map[ulid.ULID]blog.Post)}
}

// Create implements blog.PostRepository.
func (r *PostRepository) Create(_ context.Context, post *blog.Post) error {
	if r.Owners != nil && !r.Owners(post.OwnerID) {
		return oops.Code(blog.CodeOwnerNotFound).With("owner_id", post.OwnerID.String()).Wrap(blog.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = *post
	return nil
}

// GetByID implements blog.PostRepository.
func (r *PostRepository) GetByID(_ context.Context, id ulid.ULID) (*blog.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, blog.PostNotFound(id)
	}
	return &p, nil
}

// Update implements blog.PostRepository.
func (r *PostRepository) Update(_ context.Context, id ulid.ULID, in blog.PostInput, updatedAt time.Time) (*blog.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, blog.PostNotFound(id)
	}
	p.Title, p.Content, p.UpdatedAt = in.Title, in.Content, updatedAt
	r.posts[id] = p
	return &p, nil
}

// Delete implements blog.PostRepository.
func (r *PostRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return blog.PostNotFound(id)
	}
	delete(r.posts, id)
	return nil
}

// ListRecent implements blog.PostRepository.
func (r *PostRepository) ListRecent(_ context.Context, limit, offset int) ([]*blog.Post, error) {
	return r.list(func(blog.Post) bool { return true }, limit, offset), nil
}

// ListByOwner implements blog.PostRepository.
func (r *PostRepository) ListByOwner(_ context.Context, ownerID ulid.ULID, limit, offset int) ([]*blog.Post, error) {
	return r.list(func(p blog.Post) bool { return p.OwnerID == ownerID }, limit, offset), nil
}

func (r *PostRepository) list(keep func(blog.Post) bool, limit, offset int) []*blog.Post {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]*blog.Post, 0, len(r.posts))
	for _, p := range r.posts {
		if keep(p) {
			all = append(all, &p)
		}
	}
	slices.SortFunc(all, func(a, b *blog.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.ID.Compare(a.ID)
	})
	if offset >= len(all) {
		return []*blog.Post{}
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all
}

var _ blog.PostRepository = (*PostRepository)(nil)
