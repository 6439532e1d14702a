// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"base-url":      "http.base_url",
	"cookie-secure": "http.cookie_secure",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
}

// RegisterFlags adds the overridable settings to fs. Their defaults only
// apply when neither the file nor the command line sets the key.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file")
	fs.String("env-file", ".env", "dotenv file to seed the environment from, if present")
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("base-url", d.HTTP.BaseURL, "public origin used in password reset links")
	fs.Bool("cookie-secure", d.HTTP.CookieSecure, "mark the session cookie Secure")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Options controls Load.
type Options struct {
	// Path is the YAML file; empty skips the file layer.
	Path string

	// Flags, when set, is layered over the file.
	Flags *pflag.FlagSet

	// Getenv reads secrets. Nil uses os.Getenv.
	Getenv func(string) string
}

// Load builds a Config from defaults, the file, flags and the environment.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", opts.Path).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.SecretKey = getenv(EnvSecretKey)
	cfg.DatabaseURL = getenv(EnvDatabaseURL)
	cfg.MailPassword = getenv(EnvMailPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv seeds the process environment from path. Variables already set
// win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_ENV_FILE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
