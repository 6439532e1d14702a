// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/quillblog/quill/internal/auth"
)

// SessionCookie is the name of the cookie carrying the session token.
const SessionCookie = "quill_session"

// sessionToken returns the bearer token, falling back to the session cookie.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
		return "", false
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value, true
	}
	return "", false
}

// setSessionCookie stores tok. Only remembered sessions outlive the browser
// session.
func (a *API) setSessionCookie(w http.ResponseWriter, tok auth.SessionToken) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    tok.Value,
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if tok.Persistent {
		c.Expires = tok.ExpiresAt
	}
	http.SetCookie(w, c)
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
