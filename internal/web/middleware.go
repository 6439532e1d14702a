// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package web

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/access"
)

// identify resolves the session token, if any, once per request and stores
// the identity in the request context. A token that fails to resolve leaves
// the request anonymous; a bad cookie is also cleared.
func (a *API) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := a.auth.ResolveSession(r.Context(), token)
		if err != nil {
			if fromCookie {
				a.clearSessionCookie(w)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := access.RequireAuthenticated(access.IdentityFromContext(r.Context())); err != nil {
			a.fail(w, r, err)
			return
		}
		next(w, r)
	}
}

// requireAnonymous turns signed-in callers away from the register, login and
// reset routes.
func (a *API) requireAnonymous(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if access.IdentityFromContext(r.Context()) != nil {
			a.respond(w, r, http.StatusConflict, errorEnvelope{Error: apiError{
				Code:    CodeAlreadyAuthenticated,
				Message: msgAlreadyLoggedIn,
			}})
			return
		}
		next(w, r)
	}
}

// instrument logs and counts each request under its route pattern. The raw
// path is never logged because reset links carry their token in it.
func (a *API) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		a.metrics.ObserveRequest(route, m.Code)
		attrs := []any{
			"route", route,
			"status", m.Code,
			"duration_ms", m.Duration.Milliseconds(),
			"bytes", m.Written,
		}
		if id := access.IdentityFromContext(r.Context()); id != nil {
			attrs = append(attrs, "user_id", id.UserID.String())
		}
		a.logger.InfoContext(r.Context(), "request completed", attrs...)
	})
}

const (
	corsMethods = "GET, POST, PATCH, DELETE"
	corsHeaders = "Authorization, Content-Type"
	corsMaxAge  = "600"
)

// corsPolicy admits cross-origin browser requests from origins matching one
// of its glob patterns. '.' separates glob segments, so "https://*.example.com"
// matches one subdomain level only.
type corsPolicy struct {
	origins []glob.Glob
}

func newCORSPolicy(patterns []string) (*corsPolicy, error) {
	p := &corsPolicy{origins: make([]glob.Glob, 0, len(patterns))}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.Code("WEB_INVALID_CONFIG").With("origin", pattern).Wrap(err)
		}
		p.origins = append(p.origins, g)
	}
	return p, nil
}

func (p *corsPolicy) allowed(origin string) bool {
	for _, g := range p.origins {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

func (p *corsPolicy) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if !p.allowed(origin) {
			if preflight {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		if preflight {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
