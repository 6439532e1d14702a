// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("quill/auth")

// Login outcomes reported to Metrics.
const (
	LoginSucceeded          = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginLocked             = "locked"
	LoginError              = "error"
)

// Password reset stages reported to Metrics.
const (
	ResetRequested    = "requested"
	ResetUnknownEmail = "unknown_email"
	ResetCompleted    = "completed"
)

// Metrics receives authentication events. The observability package provides
// the Prometheus implementation.
type Metrics interface {
	LoginAttempt(result string)
	TokenRejected(kind TokenKind, reason TokenReason)
	PasswordReset(stage string)
}

type noopMetrics struct{}

func (noopMetrics) LoginAttempt(string)                  {}
func (noopMetrics) TokenRejected(TokenKind, TokenReason) {}
func (noopMetrics) PasswordReset(string)                 {}

// Option configures the services in this package.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics Metrics
	clock   Clock
}

// WithLogger sets the structured logger. A nil logger is rejected by the constructors.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock sets the clock used for lockout bookkeeping and timestamps.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), metrics: noopMetrics{}, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// recordTokenRejection feeds a rejected token into metrics and the debug log.
func recordTokenRejection(ctx context.Context, o options, err error) {
	te, ok := AsTokenError(err)
	if !ok {
		return
	}
	o.metrics.TokenRejected(te.Kind, te.Reason)
	o.logger.DebugContext(ctx, "token rejected",
		"kind", string(te.Kind),
		"reason", string(te.Reason))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
