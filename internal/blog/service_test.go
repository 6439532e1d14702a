// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package blog_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/access"
	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/auth/authtest"
	"github.com/quillblog/quill/internal/blog"
	"github.com/quillblog/quill/internal/blog/blogtest"
	"github.com/quillblog/quill/pkg/errutil"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	users *authtest.UserRepository
	posts *blogtest.PostRepository
	clock *authtest.Clock
	svc   *blog.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: authtest.NewUserRepository(),
		posts: blogtest.NewPostRepository(),
		clock: authtest.NewClock(fixedNow),
	}
	f.posts.Owners = func(id ulid.ULID) bool {
		_, err := f.users.GetByID(context.Background(), id)
		return err == nil
	}
	svc, err := blog.NewService(f.posts, f.users, blog.WithClock(f.clock.Now))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) addUser(t *testing.T, username string) *access.Identity {
	t.Helper()
	u := &auth.User{ID: ulid.Make(), Username: username, Email: username + "@x.io", PasswordHash: "digest"}
	require.NoError(t, f.users.Create(context.Background(), u))
	return &access.Identity{UserID: u.ID}
}

func TestNewService_Validation(t *testing.T) {
	_, err := blog.NewService(nil, authtest.NewUserRepository())
	assert.ErrorContains(t, err, "post repository is required")

	_, err = blog.NewService(blogtest.NewPostRepository(), nil)
	assert.ErrorContains(t, err, "author lookup is required")

	_, err = blog.NewService(blogtest.NewPostRepository(), authtest.NewUserRepository(), blog.WithLogger(nil))
	assert.ErrorContains(t, err, "logger is required")
}

func TestPostInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		in    blog.PostInput
		field string
	}{
		{"empty title", blog.PostInput{Title: "  ", Content: "body"}, "title"},
		{"long title", blog.PostInput{Title: strings.Repeat("t", 101), Content: "body"}, "title"},
		{"empty content", blog.PostInput{Title: "Hi", Content: "\n"}, "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			errutil.AssertErrorCode(t, err, blog.CodeValidation)
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}

	ok := blog.PostInput{Title: "  " + strings.Repeat("é", 100) + " ", Content: "body"}
	require.NoError(t, ok.Validate())
	assert.Equal(t, strings.Repeat("é", 100), ok.Title)
}

func TestService_OwnershipScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	carol := f.addUser(t, "carol")

	post, err := f.svc.Create(ctx, alice, blog.PostInput{Title: "Hi", Content: "x"})
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, post.OwnerID)
	assert.Equal(t, fixedNow, post.CreatedAt)

	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		_, err := f.svc.Create(ctx, nil, blog.PostInput{Title: "Hi", Content: "x"})
		assert.True(t, access.IsUnauthorized(err))
		_, err = f.svc.Update(ctx, nil, post.ID, blog.PostInput{Title: "Hacked", Content: "x"})
		assert.True(t, access.IsUnauthorized(err))
		assert.True(t, access.IsUnauthorized(f.svc.Delete(ctx, nil, post.ID)))
	})

	t.Run("non-owner is forbidden and nothing changes", func(t *testing.T) {
		_, err := f.svc.Update(ctx, carol, post.ID, blog.PostInput{Title: "Hacked", Content: "x"})
		require.Error(t, err)
		assert.True(t, access.IsForbidden(err))
		errutil.AssertErrorCode(t, err, access.CodeForbidden)

		assert.True(t, access.IsForbidden(f.svc.Delete(ctx, carol, post.ID)))

		stored, err := f.svc.Get(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hi", stored.Title)
	})

	t.Run("owner updates", func(t *testing.T) {
		f.clock.Advance(time.Hour)
		updated, err := f.svc.Update(ctx, alice, post.ID, blog.PostInput{Title: "Hello", Content: "y"})
		require.NoError(t, err)
		assert.Equal(t, "Hello", updated.Title)
		assert.Equal(t, fixedNow, updated.CreatedAt)
		assert.Equal(t, fixedNow.Add(time.Hour), updated.UpdatedAt)
		assert.Equal(t, alice.UserID, updated.OwnerID)
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, f.svc.Delete(ctx, alice, post.ID))
		_, err := f.svc.Get(ctx, post.ID)
		assert.True(t, blog.IsNotFound(err))
		errutil.AssertErrorCode(t, err, blog.CodePostNotFound)
	})

	t.Run("missing post", func(t *testing.T) {
		err := f.svc.Delete(ctx, alice, ulid.Make())
		assert.True(t, blog.IsNotFound(err))
	})
}

func TestService_CreateForVanishedOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), &access.Identity{UserID: ulid.Make()}, blog.PostInput{Title: "Hi", Content: "x"})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, blog.CodeOwnerNotFound)
}

func TestService_Listings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	var aliceTitles []string
	for i := range 5 {
		id := alice
		if i%2 == 1 {
			id = bob
		}
		title := "post " + string(rune('a'+i))
		_, err := f.svc.Create(ctx, id, blog.PostInput{Title: title, Content: "x"})
		require.NoError(t, err)
		if id == alice {
			aliceTitles = append([]string{title}, aliceTitles...)
		}
		f.clock.Advance(time.Minute)
	}

	recent, err := f.svc.ListRecent(ctx, blog.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "post e", recent[0].Title)
	assert.Equal(t, "post d", recent[1].Title)

	recent, err = f.svc.ListRecent(ctx, blog.Page{Limit: 10, Offset: 4})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "post a", recent[0].Title)

	author, posts, err := f.svc.ListByAuthor(ctx, "ALICE", blog.Page{})
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, author.ID)
	var got []string
	for _, p := range posts {
		got = append(got, p.Title)
	}
	assert.Equal(t, aliceTitles, got)

	_, _, err = f.svc.ListByAuthor(ctx, "nobody", blog.Page{})
	assert.True(t, blog.IsNotFound(err))
	errutil.AssertErrorCode(t, err, blog.CodeUserNotFound)
	assert.Equal(t, "USER_NOT_FOUND", errutil.Code(err))
}
