// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quillblog/quill/internal/auth"
	authpg "github.com/quillblog/quill/internal/auth/postgres"
	"github.com/quillblog/quill/internal/blog"
	blogpg "github.com/quillblog/quill/internal/blog/postgres"
	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/notify"
	"github.com/quillblog/quill/internal/observability"
	"github.com/quillblog/quill/internal/store"
	"github.com/quillblog/quill/internal/web"
)

const (
	shutdownTimeout  = 10 * time.Second
	readinessTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the JSON API for accounts and posts. Requires QUILL_SECRET_KEY
and DATABASE_URL; run "quill migrate up" first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, nil)
		},
	}
}

// runServe starts the API with injectable dependencies and blocks until ctx
// is cancelled, a signal arrives or a server fails.
// If deps is nil, default implementations are used.
func runServe(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.PoolFactory == nil {
		deps.PoolFactory = func(ctx context.Context, dsn string, cfg store.PoolConfig) (Pool, error) {
			return store.Connect(ctx, dsn, cfg)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	logger := setupLogging(cfg)

	logger.Info("starting quill",
		"http_addr", cfg.HTTP.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"version", version,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := deps.PoolFactory(ctx, cfg.DatabaseURL, store.PoolConfig{
		MaxConns:       cfg.DB.MaxConns,
		ConnectTimeout: cfg.DB.ConnectTimeout.Std(),
	})
	if err != nil {
		return oops.Code("SERVE_DB_CONNECT_FAILED").Wrap(err)
	}
	defer pool.Close()
	logger.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	var authOpts []auth.Option
	var requestObserver web.RequestObserver
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, observability.PingReadiness(pool, readinessTimeout))
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_START_FAILED").With("component", "observability").Wrap(err)
		}
		defer stopServer(logger, "observability", obsServer.Stop)
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())

		authOpts = append(authOpts, auth.WithMetrics(obsServer.Metrics()))
		requestObserver = obsServer.Metrics()
	}
	authOpts = append(authOpts, auth.WithLogger(logger))

	api, err := buildAPI(cfg, pool, logger, authOpts, requestObserver)
	if err != nil {
		return err
	}
	// Runs after the HTTP server stops so no new mail is queued behind it.
	defer stopServer(logger, "reset mail", api.Drain)

	httpServer := web.NewServer(cfg.HTTP.Addr, api.Handler())
	httpErrChan, err := httpServer.Start()
	if err != nil {
		return oops.Code("SERVE_START_FAILED").With("component", "http").Wrap(err)
	}
	defer stopServer(logger, "http", httpServer.Stop)
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	cmd.Println("Quill started")
	logger.Info("quill ready", "http_addr", httpServer.Addr())

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// buildAPI wires the services behind the HTTP API.
func buildAPI(cfg *config.Config, db store.DB, logger *slog.Logger, authOpts []auth.Option, observer web.RequestObserver) (*web.API, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.HasherParams())
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(cfg.Secret(), auth.SessionConfig{
		TTL:         cfg.Session.TTL.Std(),
		RememberTTL: cfg.Session.RememberTTL.Std(),
	}, nil)
	if err != nil {
		return nil, err
	}
	resetTokens, err := auth.NewResetTokenService(cfg.Secret(), cfg.Reset.TTL.Std(), nil)
	if err != nil {
		return nil, err
	}
	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	users := authpg.NewUserRepository(db)
	posts := blogpg.NewPostRepository(db)

	authSvc, err := auth.NewAuthService(users, hasher, sessions, authOpts...)
	if err != nil {
		return nil, err
	}
	resets, err := auth.NewPasswordResetService(users, hasher, resetTokens, notifier, cfg.HTTP.BaseURL, authOpts...)
	if err != nil {
		return nil, err
	}
	blogSvc, err := blog.NewService(posts, users, blog.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return web.New(web.Config{
		Auth:           authSvc,
		Resets:         resets,
		Blog:           blogSvc,
		Metrics:        observer,
		Logger:         logger,
		CookieSecure:   cfg.HTTP.CookieSecure,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
}

// newNotifier sends mail when a host is configured and logs otherwise.
func newNotifier(cfg *config.Config, logger *slog.Logger) (auth.Notifier, error) {
	if cfg.Mail.Host == "" {
		logger.Warn("mail.host not set; reset notifications are logged, not sent")
		return notify.NewLogNotifier(logger), nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.MailPassword,
		From:     cfg.Mail.From,
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// monitorServerErrors cancels ctx when a server reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server error, initiating shutdown", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopServer(logger *slog.Logger, name string, stopFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stopFn(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}
