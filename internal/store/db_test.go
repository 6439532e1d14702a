// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/pkg/errutil"
)

type flakyPinger struct {
	failures int32
	calls    atomic.Int32
}

func (p *flakyPinger) Ping(context.Context) error {
	if p.calls.Add(1) <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestPingWithBackoff_RetriesUntilReachable(t *testing.T) {
	p := &flakyPinger{failures: 2}
	err := pingWithBackoff(context.Background(), p, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestPingWithBackoff_GivesUpAtTimeout(t *testing.T) {
	p := &flakyPinger{failures: 1 << 30}
	err := pingWithBackoff(context.Background(), p, 250*time.Millisecond)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.Greater(t, p.calls.Load(), int32(1))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", PoolConfig{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestPgxmockSatisfiesDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	var db DB = mock
	var pinger Pinger = mock
	assert.NotNil(t, db)
	assert.NotNil(t, pinger)
}
