// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package notify delivers password reset links.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/auth"
)

const resetSubject = "Password Reset Request"

const (
	// DialTimeout bounds connecting to the mail server.
	DialTimeout = 10 * time.Second
	// sendTimeout bounds a whole delivery when ctx carries no deadline.
	sendTimeout = 30 * time.Second
)

// resetBody renders the plain-text reset message.
func resetBody(link string) string {
	return "To reset your password, visit the following link:\r\n" +
		link + "\r\n\r\n" +
		"If you did not make this request, please ignore this email. No changes will be made.\r\n"
}

// Noop discards every notification.
type Noop struct{}

// SendPasswordReset implements auth.Notifier.
func (Noop) SendPasswordReset(context.Context, *auth.User, string) error { return nil }

// LogNotifier records that a reset link was issued without delivering it.
// The link carries the token, so it is never logged.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordReset implements auth.Notifier.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, user *auth.User, _ string) error {
	n.logger.InfoContext(ctx, "password reset link issued; no mail transport configured",
		"user_id", user.ID.String())
	return nil
}

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendFunc delivers one message to the server at addr.
type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails reset links. It upgrades to STARTTLS when the server
// offers it; PLAIN auth is only sent over TLS or to localhost.
type SMTPNotifier struct {
	cfg  SMTPConfig
	from mail.Address
	auth smtp.Auth
	send sendFunc
	now  func() time.Time
}

// NewSMTPNotifier validates cfg and creates an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").Errorf("mail host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("port", cfg.Port).Errorf("mail port out of range")
	}
	from, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_CONFIG").With("from", cfg.From).Wrapf(err, "invalid sender address")
	}

	n := &SMTPNotifier{cfg: cfg, from: *from, now: time.Now}
	n.send = n.deliver
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n, nil
}

// SendPasswordReset implements auth.Notifier.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, user *auth.User, link string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("NOTIFY_CANCELLED").Wrap(err)
	}
	to := mail.Address{Address: user.Email}
	msg := n.message(to, resetSubject, resetBody(link))
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	if err := n.send(ctx, addr, n.auth, n.from.Address, []string{to.Address}, msg); err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("smtp_addr", addr).
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// deliver runs one SMTP transaction. The connection is bounded by ctx's
// deadline, or sendTimeout when it has none, and is closed if ctx ends.
func (n *SMTPNotifier) deliver(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	dialer := net.Dialer{Timeout: DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(sendTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: n.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return oops.Errorf("server does not support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (n *SMTPNotifier) message(to mail.Address, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.from.String())
	fmt.Fprintf(&b, "To: %s\r\n", to.String())
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n.", "\n.."))
	return b.Bytes()
}

var (
	_ auth.Notifier = Noop{}
	_ auth.Notifier = (*LogNotifier)(nil)
	_ auth.Notifier = (*SMTPNotifier)(nil)
)
