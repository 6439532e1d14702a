// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum length of the process signing secret in bytes (256 bits).
const MinSecretLength = 32

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// TokenKind identifies the namespace a signed token belongs to.
type TokenKind string

// Token namespaces. Each is signed with its own key derived from the process
// secret, so a token minted in one namespace never verifies in another.
const (
	KindSession TokenKind = "session"
	KindReset   TokenKind = "password-reset"
)

// TokenReason classifies why a token was rejected. It is kept for logs and
// metrics only; callers show a single generic message for every reason.
type TokenReason string

// Rejection reasons.
const (
	ReasonMalformed        TokenReason = "malformed"
	ReasonSignatureInvalid TokenReason = "signature_invalid"
	ReasonExpired          TokenReason = "expired"
)

// Error codes for rejected tokens.
const (
	CodeTokenMalformed        = "TOKEN_MALFORMED"
	CodeTokenSignatureInvalid = "TOKEN_SIGNATURE_INVALID"
	CodeTokenExpired          = "TOKEN_EXPIRED"
)

// Code returns the error code for the reason.
func (r TokenReason) Code() string {
	switch r {
	case ReasonExpired:
		return CodeTokenExpired
	case ReasonSignatureInvalid:
		return CodeTokenSignatureInvalid
	default:
		return CodeTokenMalformed
	}
}

// TokenError is the cause of every token rejection.
type TokenError struct {
	Kind   TokenKind
	Reason TokenReason
	cause  error
}

// Error returns the generic message shown to users for any rejected token.
func (e *TokenError) Error() string {
	return "that is an invalid or expired token"
}

// Unwrap returns the underlying parser error, if any.
func (e *TokenError) Unwrap() error {
	return e.cause
}

// AsTokenError extracts the TokenError from err.
func AsTokenError(err error) (*TokenError, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTokenError reports whether err is a rejected session or reset token.
func IsTokenError(err error) bool {
	_, ok := AsTokenError(err)
	return ok
}

func tokenError(kind TokenKind, reason TokenReason, cause error) error {
	return oops.Code(reason.Code()).
		With("kind", string(kind)).
		With("reason", string(reason)).
		Wrap(&TokenError{Kind: kind, Reason: reason, cause: cause})
}

// namespace holds the key and audience for one token kind.
type namespace struct {
	kind     TokenKind
	key      []byte
	audience string
}

// deriveNamespace derives a 256-bit HMAC key for kind from the process secret.
func deriveNamespace(secret []byte, kind TokenKind) (namespace, error) {
	if len(secret) < MinSecretLength {
		return namespace{}, oops.Code("AUTH_SECRET_TOO_SHORT").
			With("min_bytes", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, secret, nil, []byte("quill/"+string(kind)+"/v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return namespace{}, oops.Code("AUTH_KEY_DERIVATION_FAILED").Wrap(err)
	}
	return namespace{kind: kind, key: key, audience: "quill:" + string(kind)}, nil
}

// tokenClaims carries the exact expiry next to the registered claims. The
// registered exp has whole-second precision and is rounded up, so the
// nanosecond expiry is what decides validity.
type tokenClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns"`
}

// ceilSecond rounds t up to the next whole second.
func ceilSecond(t time.Time) time.Time {
	if tr := t.Truncate(time.Second); !tr.Equal(t) {
		return tr.Add(time.Second)
	}
	return t
}

// sign mints a token for subject valid from issuedAt until expiresAt.
func (ns namespace) sign(subject ulid.ULID, issuedAt, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Audience:  jwt.ClaimStrings{ns.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(expiresAt)),
			ID:        ulid.MustNew(ulid.Timestamp(issuedAt), rand.Reader).String(),
		},
		ExpiresAtNano: expiresAt.UnixNano(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ns.key)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("kind", string(ns.kind)).Wrap(err)
	}
	return signed, nil
}

// verify checks signature, audience and expiry and returns the subject.
// A token is valid iff now < exp.
func (ns namespace) verify(token string, now time.Time) (ulid.ULID, time.Time, error) {
	if token == "" {
		return ulid.ULID{}, time.Time{}, tokenError(ns.kind, ReasonMalformed, nil)
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return ns.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(ns.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return ulid.ULID{}, time.Time{}, tokenError(ns.kind, classifyJWTError(err), err)
	}
	if claims.ExpiresAtNano == 0 {
		return ulid.ULID{}, time.Time{}, tokenError(ns.kind, ReasonMalformed, errors.New("missing exact expiry"))
	}

	expiresAt := time.Unix(0, claims.ExpiresAtNano).UTC()
	if !now.Before(expiresAt) {
		return ulid.ULID{}, time.Time{}, tokenError(ns.kind, ReasonExpired, jwt.ErrTokenExpired)
	}

	subject, err := ulid.ParseStrict(claims.Subject)
	if err != nil {
		return ulid.ULID{}, time.Time{}, tokenError(ns.kind, ReasonMalformed, err)
	}
	return subject, expiresAt, nil
}

func classifyJWTError(err error) TokenReason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonSignatureInvalid
	default:
		return ReasonMalformed
	}
}
