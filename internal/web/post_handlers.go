// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/access"
	"github.com/quillblog/quill/internal/blog"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// pageFromQuery reads limit and offset. Missing values fall back to the
// service defaults.
func pageFromQuery(r *http.Request) (blog.Page, error) {
	var page blog.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return blog.Page{}, oops.Code(blog.CodeValidation).
				With("field", p.name).
				Errorf("%s must be a non-negative integer", p.name)
		}
		*p.dst = n
	}
	return page, nil
}

// postID parses the {id} path segment. An unparsable id is reported as a
// missing post.
func postID(r *http.Request) (ulid.ULID, error) {
	raw := r.PathValue("id")
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(blog.CodePostNotFound).With("post_id", raw).Wrap(blog.ErrNotFound)
	}
	return id, nil
}

func (a *API) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	posts, err := a.blog.ListRecent(r.Context(), page)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, postsResponse{Posts: newPostViews(posts)})
}

func (a *API) handleListUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	author, posts, err := a.blog.ListByAuthor(r.Context(), r.PathValue("username"), page)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, authorPostsResponse{
		Author: authorView{ID: author.ID.String(), Username: author.Username, AvatarRef: author.AvatarRef},
		Posts:  newPostViews(posts),
	})
}

func (a *API) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	post, err := a.blog.Create(r.Context(), access.IdentityFromContext(r.Context()), blog.PostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/posts/"+post.ID.String())
	a.respond(w, r, http.StatusCreated, postResponse{Post: newPostView(post)})
}

func (a *API) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	post, err := a.blog.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, postResponse{Post: newPostView(post)})
}

func (a *API) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req postRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	post, err := a.blog.Update(r.Context(), access.IdentityFromContext(r.Context()), id, blog.PostInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, postResponse{Post: newPostView(post)})
}

func (a *API) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := postID(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.blog.Delete(r.Context(), access.IdentityFromContext(r.Context()), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
