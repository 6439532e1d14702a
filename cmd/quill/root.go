// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/internal/logging"
	"github.com/quillblog/quill/internal/xdg"
)

// NewRootCmd creates the root command for the Quill CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quill",
		Short: "Quill - a small multi-user blog",
		Long: `Quill serves a JSON API for accounts and posts, backed by PostgreSQL.
Secrets are read from the environment: QUILL_SECRET_KEY and DATABASE_URL.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewSecretCmd())

	return cmd
}

// loadConfig seeds the environment from --env-file, then layers the config
// file and the command-line flags over the defaults. Without --config the
// XDG config file is used when present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	envFile, _ := flags.GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	path, _ := flags.GetString("config")
	if path == "" {
		var err error
		if path, err = xdg.ExistingConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.Options{Path: path, Flags: flags})
}

// setupLogging installs the process logger described by cfg.
func setupLogging(cfg *config.Config) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: "quill",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
}
