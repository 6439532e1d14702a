// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/auth"
	authpg "github.com/quillblog/quill/internal/auth/postgres"
	"github.com/quillblog/quill/internal/blog"
	"github.com/quillblog/quill/internal/blog/postgres"
	"github.com/quillblog/quill/internal/store/storetest"
	"github.com/quillblog/quill/pkg/errutil"
)

var testDB *storetest.Database

func TestMain(m *testing.M) {
	ctx := context.Background()
	db, err := storetest.Start(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start postgres:", err)
		os.Exit(1)
	}
	testDB = db
	code := m.Run()
	db.Close(ctx)
	os.Exit(code)
}

func TestPostRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.Truncate(ctx))

	users := authpg.NewUserRepository(testDB.Pool)
	posts := postgres.NewPostRepository(testDB.Pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	owner := &auth.User{ID: ulid.Make(), Username: "alice", Email: "a@x.io", PasswordHash: "digest",
		AvatarRef: auth.DefaultAvatarRef, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, users.Create(ctx, owner))

	var ids []ulid.ULID
	for i := range 3 {
		at := now.Add(time.Duration(i) * time.Minute)
		p := &blog.Post{ID: ulid.Make(), Title: fmt.Sprintf("post %d", i), Content: "x",
			OwnerID: owner.ID, CreatedAt: at, UpdatedAt: at}
		require.NoError(t, posts.Create(ctx, p))
		ids = append(ids, p.ID)
	}

	recent, err := posts.ListRecent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)

	mine, err := posts.ListByOwner(ctx, owner.ID, 10, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ids[0], mine[0].ID)

	updated, err := posts.Update(ctx, ids[0], blog.PostInput{Title: "edited", Content: "y"}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Title)
	assert.True(t, now.Equal(updated.CreatedAt))

	require.NoError(t, posts.Delete(ctx, ids[0]))
	_, err = posts.GetByID(ctx, ids[0])
	assert.True(t, blog.IsNotFound(err))

	t.Run("unknown owner", func(t *testing.T) {
		err := posts.Create(ctx, &blog.Post{ID: ulid.Make(), Title: "t", Content: "c",
			OwnerID: ulid.Make(), CreatedAt: now, UpdatedAt: now})
		errutil.AssertErrorCode(t, err, blog.CodeOwnerNotFound)
	})

	t.Run("owner cannot be deleted while posts exist", func(t *testing.T) {
		_, err := testDB.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, owner.ID.String())
		require.Error(t, err)
	})
}
