// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package web exposes the account and post operations as a JSON API.
//
// Each request is resolved to at most one access.Identity by the Identify
// middleware before routing; handlers read it from the request context and
// never from package state.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/auth"
	"github.com/quillblog/quill/internal/blog"
)

// RequestObserver counts completed API requests.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(string, int) {}

// Config holds the API's collaborators and cookie/CORS settings.
type Config struct {
	Auth   *auth.Service
	Resets *auth.PasswordResetService
	Blog   *blog.Service

	// Metrics is optional.
	Metrics RequestObserver
	Logger  *slog.Logger

	// CookieSecure sets the Secure attribute on the session cookie.
	CookieSecure bool
	// AllowedOrigins are glob patterns such as "https://*.example.com".
	AllowedOrigins []string
}

// API serves the /api routes.
type API struct {
	auth         *auth.Service
	resets       *auth.PasswordResetService
	blog         *blog.Service
	metrics      RequestObserver
	logger       *slog.Logger
	cookieSecure bool
	cors         *corsPolicy
}

// New validates cfg and builds an API.
func New(cfg Config) (*API, error) {
	if cfg.Auth == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if cfg.Resets == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("password reset service is required")
	}
	if cfg.Blog == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("blog service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics RequestObserver = noopObserver{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	cors, err := newCORSPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}
	return &API{
		auth:         cfg.Auth,
		resets:       cfg.Resets,
		blog:         cfg.Blog,
		metrics:      metrics,
		logger:       logger,
		cookieSecure: cfg.CookieSecure,
		cors:         cors,
	}, nil
}

// Drain waits for work that outlives its request, such as reset mail.
func (a *API) Drain(ctx context.Context) error {
	return a.resets.Wait(ctx)
}

// Handler returns the routed API wrapped in CORS and identity resolution.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	anon := a.requireAnonymous
	authed := a.requireAuth
	a.route(mux, "POST /api/register", anon(a.handleRegister))
	a.route(mux, "POST /api/login", anon(a.handleLogin))
	a.route(mux, "POST /api/logout", a.handleLogout)

	a.route(mux, "GET /api/account", authed(a.handleGetAccount))
	a.route(mux, "PATCH /api/account", authed(a.handleUpdateAccount))
	a.route(mux, "POST /api/account/password", authed(a.handleChangePassword))

	a.route(mux, "POST /api/reset_password", anon(a.handleRequestReset))
	a.route(mux, "GET /api/reset_password/{token}", anon(a.handleCheckResetToken))
	a.route(mux, "POST /api/reset_password/{token}", anon(a.handleResetPassword))

	a.route(mux, "GET /api/posts", a.handleListPosts)
	a.route(mux, "POST /api/posts", authed(a.handleCreatePost))
	a.route(mux, "GET /api/posts/{id}", a.handleGetPost)
	a.route(mux, "PATCH /api/posts/{id}", authed(a.handleUpdatePost))
	a.route(mux, "DELETE /api/posts/{id}", authed(a.handleDeletePost))
	a.route(mux, "GET /api/users/{username}/posts", a.handleListUserPosts)

	return a.cors.wrap(a.identify(mux))
}

func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, a.instrument(pattern, h))
}
