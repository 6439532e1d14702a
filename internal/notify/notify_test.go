// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/pkg/errutil"
)

const link = "https://blog.example.com/reset_password/eyJhbGciOiJIUzI1NiJ9.e30.sig"

func testUser() *auth.User {
	return &auth.User{ID: ulid.Make(), Username: "bob", Email: "bob@x.io"}
}

func TestLogNotifier_NeverLogsTheLink(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
	user := testUser()

	require.NoError(t, n.SendPasswordReset(context.Background(), user, link))
	assert.Contains(t, buf.String(), user.ID.String())
	assert.NotContains(t, buf.String(), "reset_password/")
	assert.NotContains(t, buf.String(), "eyJ")
}

func TestNewSMTPNotifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMTPConfig
	}{
		{"missing host", SMTPConfig{Port: 587, From: "noreply@x.io"}},
		{"bad port", SMTPConfig{Host: "smtp.x.io", Port: 0, From: "noreply@x.io"}},
		{"bad sender", SMTPConfig{Host: "smtp.x.io", Port: 587, From: "not an address"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPNotifier(tt.cfg)
			errutil.AssertErrorCode(t, err, "NOTIFY_INVALID_CONFIG")
		})
	}
}

func TestSMTPNotifier_Send(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.x.io", Port: 587, Username: "quill", Password: "pw", From: "Quill <noreply@x.io>"})
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
		gotAuth smtp.Auth
	)
	n.send = func(_ context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, string(msg)
		return nil
	}

	user := testUser()
	require.NoError(t, n.SendPasswordReset(context.Background(), user, link))

	assert.Equal(t, "smtp.x.io:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "noreply@x.io", gotFrom)
	assert.Equal(t, []string{"bob@x.io"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Password Reset Request\r\n")
	assert.Contains(t, gotMsg, "To: <bob@x.io>\r\n")
	assert.Contains(t, gotMsg, "To reset your password, visit the following link:\r\n"+link+"\r\n")
	assert.Contains(t, gotMsg, "please ignore this email")
}

func TestSMTPNotifier_SendFailure(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@x.io"})
	require.NoError(t, err)
	assert.Nil(t, n.auth)
	n.send = func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		return errors.New("451 try again later")
	}

	err = n.SendPasswordReset(context.Background(), testUser(), link)
	errutil.AssertErrorCode(t, err, "NOTIFY_SEND_FAILED")
	assert.NotContains(t, err.Error(), "eyJ")
}

func TestSMTPNotifier_CancelledContext(t *testing.T) {
	n, err := NewSMTPNotifier(SMTPConfig{Host: "localhost", Port: 25, From: "noreply@x.io"})
	require.NoError(t, err)
	n.send = func(context.Context, string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errutil.AssertErrorCode(t, n.SendPasswordReset(ctx, testUser(), link), "NOTIFY_CANCELLED")
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.SendPasswordReset(context.Background(), testUser(), link))
}
