// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package storetest starts a throwaway PostgreSQL for integration tests.
package storetest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quillblog/quill/internal/store"
)

// Database is a migrated PostgreSQL container.
type Database struct {
	URL  string
	Pool *pgxpool.Pool

	container *postgres.PostgresContainer
}

// Start runs postgres:16-alpine, applies every migration and opens a pool.
func Start(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("quill_test"),
		postgres.WithUsername("quill"),
		postgres.WithPassword("quill"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.With("operation", "start postgres container").Wrap(err)
	}
	db := &Database{container: container}

	db.URL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		db.Close(ctx)
		return nil, oops.With("operation", "get connection string").Wrap(err)
	}

	if err := migrateUp(db.URL); err != nil {
		db.Close(ctx)
		return nil, err
	}

	db.Pool, err = store.Connect(ctx, db.URL, store.PoolConfig{ConnectTimeout: 10 * time.Second})
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}

func migrateUp(url string) error {
	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

// Truncate empties every table, posts first.
func (d *Database) Truncate(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, `TRUNCATE posts, users`)
	return err
}

// Close closes the pool and terminates the container.
func (d *Database) Close(ctx context.Context) {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.container != nil {
		_ = d.container.Terminate(ctx)
	}
}
