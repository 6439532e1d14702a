// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package config loads Quill's configuration.
//
// Values are layered: built-in defaults, then the YAML file, then command-line
// flags. Secrets never come from the file; they are read from the environment
// (QUILL_SECRET_KEY, DATABASE_URL, QUILL_MAIL_PASSWORD), optionally seeded
// from a .env file.
package config

import (
	"net/url"
	"slices"
	"time"

	"github.com/samber/oops"

	"github.com/quillblog/quill/internal/auth"
)

// Environment variables holding secrets.
const (
	EnvSecretKey    = "QUILL_SECRET_KEY"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvMailPassword = "QUILL_MAIL_PASSWORD"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty" jsonschema:"description=Public HTTP API"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty"`
	Session SessionConfig `koanf:"session" json:"session,omitempty"`
	Reset   ResetConfig   `koanf:"reset" json:"reset,omitempty"`
	Hasher  HasherConfig  `koanf:"hasher" json:"hasher,omitempty" jsonschema:"description=argon2id cost parameters"`
	Mail    MailConfig    `koanf:"mail" json:"mail,omitempty"`
	DB      DBConfig      `koanf:"db" json:"db,omitempty"`

	// Secrets, from the environment only.
	SecretKey    string `koanf:"-" json:"-"`
	DatabaseURL  string `koanf:"-" json:"-"`
	MailPassword string `koanf:"-" json:"-"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr           string   `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Listen address"`
	BaseURL        string   `koanf:"base_url" json:"base_url,omitempty" jsonschema:"format=uri,description=Public origin used in reset links"`
	CookieSecure   bool     `koanf:"cookie_secure" json:"cookie_secure,omitempty"`
	AllowedOrigins []string `koanf:"allowed_origins" json:"allowed_origins,omitempty" jsonschema:"description=CORS origin globs"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=Metrics and health listen address; empty disables"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// SessionConfig sets session lifetimes.
type SessionConfig struct {
	TTL         Duration `koanf:"ttl" json:"ttl,omitempty"`
	RememberTTL Duration `koanf:"remember_ttl" json:"remember_ttl,omitempty"`
}

// ResetConfig sets the reset token lifetime.
type ResetConfig struct {
	TTL Duration `koanf:"ttl" json:"ttl,omitempty"`
}

// HasherConfig mirrors auth.HasherParams.
type HasherConfig struct {
	Time      uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	MemoryKiB uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" jsonschema:"minimum=8"`
	Threads   uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
	SaltLen   uint32 `koanf:"salt_len" json:"salt_len,omitempty" jsonschema:"minimum=8"`
	KeyLen    uint32 `koanf:"key_len" json:"key_len,omitempty" jsonschema:"minimum=16"`
}

// MailConfig configures SMTP delivery. An empty host logs reset links' issue instead.
type MailConfig struct {
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535"`
	Username string `koanf:"username" json:"username,omitempty"`
	From     string `koanf:"from" json:"from,omitempty"`
}

// DBConfig tunes the connection pool.
type DBConfig struct {
	MaxConns       int32    `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=1"`
	ConnectTimeout Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := auth.DefaultHasherParams()
	return Config{
		HTTP: HTTPConfig{
			Addr:    ":8080",
			BaseURL: "http://localhost:8080",
		},
		Metrics: MetricsConfig{Addr: ":9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Session: SessionConfig{
			TTL:         Duration(auth.DefaultSessionTTL),
			RememberTTL: Duration(auth.DefaultRememberTTL),
		},
		Reset: ResetConfig{TTL: Duration(auth.DefaultResetTTL)},
		Hasher: HasherConfig{
			Time:      p.Time,
			MemoryKiB: p.MemoryKiB,
			Threads:   p.Threads,
			SaltLen:   p.SaltLen,
			KeyLen:    p.KeyLen,
		},
		Mail: MailConfig{Port: 587, From: "noreply@localhost"},
		DB: DBConfig{
			MaxConns:       10,
			ConnectTimeout: Duration(30 * time.Second),
		},
	}
}

// HasherParams converts the hasher section.
func (c *Config) HasherParams() auth.HasherParams {
	return auth.HasherParams{
		Time:      c.Hasher.Time,
		MemoryKiB: c.Hasher.MemoryKiB,
		Threads:   c.Hasher.Threads,
		SaltLen:   c.Hasher.SaltLen,
		KeyLen:    c.Hasher.KeyLen,
	}
}

// Secret returns the signing secret as bytes.
func (c *Config) Secret() []byte {
	return []byte(c.SecretKey)
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "must be json or text")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return invalid("log.level", "must be debug, info, warn or error")
	}
	return nil
}

// ValidateServe checks everything the API server needs on top of Validate.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.SecretKey) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("key", EnvSecretKey).
			Errorf("%s must be set to at least %d bytes", EnvSecretKey, auth.MinSecretLength)
	}
	if c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").With("key", EnvDatabaseURL).Errorf("%s must be set", EnvDatabaseURL)
	}
	u, err := url.Parse(c.HTTP.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("http.base_url", "must be an absolute URL")
	}
	if c.Session.TTL <= 0 || c.Session.RememberTTL <= 0 || c.Reset.TTL <= 0 {
		return invalid("session.ttl", "session and reset lifetimes must be positive")
	}
	if err := c.HasherParams().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "hasher").Errorf("hasher: %v", err)
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s %s", key, msg)
}
