// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package store

import (
	"errors"
	"regexp"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/pkg/errutil"
)

type fakeMigrate struct {
	upErr       error
	downErr     error
	stepsErr    error
	version     uint
	dirty       bool
	versionErr  error
	forceErr    error
	srcCloseErr error
	dbCloseErr  error
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Steps(int) error              { return f.stepsErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Force(int) error              { return f.forceErr }
func (f *fakeMigrate) Close() (error, error)        { return f.srcCloseErr, f.dbCloseErr }

func TestNewMigrator_RejectsUnknownScheme(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/quill")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgres://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://u@h/db", driverURL("pgx5://u@h/db"))
}

func TestMigrator_NoChangeIsSuccess(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange, downErr: migrate.ErrNoChange, stepsErr: migrate.ErrNoChange}}
	require.NoError(t, m.Up())
	require.NoError(t, m.Down())
	require.NoError(t, m.Steps(0))
}

func TestMigrator_ErrorCodes(t *testing.T) {
	boom := errors.New("database locked")
	m := &Migrator{m: &fakeMigrate{upErr: boom, downErr: boom, stepsErr: boom, versionErr: boom, forceErr: boom}}

	errutil.AssertErrorCode(t, m.Up(), "MIGRATION_UP_FAILED")
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
	errutil.AssertErrorCode(t, m.Steps(-1), "MIGRATION_STEPS_FAILED")
	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")

	_, _, err := m.Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &fakeMigrate{version: 1, dirty: true}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.True(t, dirty)
}

func TestMigrator_Force_NegativeVersion(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{}}
	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	err := (&Migrator{m: &fakeMigrate{srcCloseErr: errors.New("src")}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	errutil.AssertErrorContext(t, err, "component", "source")

	err = (&Migrator{m: &fakeMigrate{dbCloseErr: errors.New("db")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "database")

	err = (&Migrator{m: &fakeMigrate{srcCloseErr: errors.New("src"), dbCloseErr: errors.New("db")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "both")
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestMigrator_StatusAndLists(t *testing.T) {
	fresh := &Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}
	st, err := fresh.Status()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, st.Pending)
	assert.Empty(t, st.Name)

	applied, err := fresh.AppliedMigrations()
	require.NoError(t, err)
	assert.Empty(t, applied)

	half := &Migrator{m: &fakeMigrate{version: 1}}
	st, err = half.Status()
	require.NoError(t, err)
	assert.Equal(t, "000001_create_users", st.Name)
	assert.Equal(t, []uint{2}, st.Pending)

	applied, err = half.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, applied)
}

func TestMigrationsFS_Layout(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	names := make(map[string]bool)
	for _, e := range entries {
		assert.Regexp(t, pattern, e.Name())
		names[e.Name()] = true
	}
	for _, want := range []string{
		"000001_create_users.up.sql",
		"000001_create_users.down.sql",
		"000002_create_posts.up.sql",
		"000002_create_posts.down.sql",
	} {
		assert.True(t, names[want], "missing %s", want)
	}

	name, err := MigrationName(99)
	require.NoError(t, err)
	assert.Empty(t, name)
}
