// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"time"

	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/blog"
)

// accountView is a user as its owner sees it. The digest and login state
// never leave the server.
type accountView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarRef string    `json:"avatar_ref"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountView(u *auth.User) accountView {
	return accountView{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		AvatarRef: u.AvatarRef,
		CreatedAt: u.CreatedAt,
	}
}

// authorView is a user as everyone else sees them.
type authorView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatar_ref"`
}

type postView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newPostView(p *blog.Post) postView {
	return postView{
		ID:        p.ID.String(),
		Title:     p.Title,
		Content:   p.Content,
		OwnerID:   p.OwnerID.String(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func newPostViews(posts []*blog.Post) []postView {
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, newPostView(p))
	}
	return views
}

type accountResponse struct {
	User    accountView `json:"user"`
	Message string      `json:"message,omitempty"`
}

type loginResponse struct {
	User      accountView `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type postResponse struct {
	Post postView `json:"post"`
}

type postsResponse struct {
	Posts []postView `json:"posts"`
}

type authorPostsResponse struct {
	Author authorView `json:"author"`
	Posts  []postView `json:"posts"`
}
