// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillblog/quill/internal/config"
	"github.com/quillblog/quill/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), NewRootCmd(), args...)
}

func executeContext(t *testing.T, ctx context.Context, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

// setEnv sets the secrets every test controls explicitly. An empty value
// unsets the variable for the duration of the test. The XDG config home is
// pointed at an empty directory.
func setEnv(t *testing.T, secret, databaseURL string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for k, v := range map[string]string{
		config.EnvSecretKey:   secret,
		config.EnvDatabaseURL: databaseURL,
	} {
		t.Setenv(k, v)
		if v == "" {
			require.NoError(t, os.Unsetenv(k))
		}
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "migrate", "config", "secret"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	out, err := execute(t, "serve", "--help")
	require.NoError(t, err)
	for _, flag := range []string{"--config", "--env-file", "--http-addr", "--base-url", "--cookie-secure", "--metrics-addr", "--log-format", "--log-level"} {
		assert.Contains(t, out, flag)
	}
}

func TestSecretCmd(t *testing.T) {
	first, err := execute(t, "secret")
	require.NoError(t, err)
	second, err := execute(t, "secret")
	require.NoError(t, err)

	first = strings.TrimSpace(first)
	assert.Len(t, first, 2*secretBytes)
	_, err = hex.DecodeString(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, strings.TrimSpace(second))
}

func TestConfigSchemaCmd(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, out, "base_url")
	assert.NotContains(t, out, "SecretKey")
}

func TestConfigValidateCmd(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		setEnv(t, "", "postgres://localhost/quill")
		_, err := execute(t, "config", "validate")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "key", config.EnvSecretKey)
	})

	t.Run("short secret", func(t *testing.T) {
		setEnv(t, "too-short", "postgres://localhost/quill")
		_, err := execute(t, "config", "validate")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("bad log format flag", func(t *testing.T) {
		setEnv(t, testSecret, "postgres://localhost/quill")
		_, err := execute(t, "config", "validate", "--log-format", "xml")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		errutil.AssertErrorContext(t, err, "key", "log.format")
	})

	t.Run("valid", func(t *testing.T) {
		setEnv(t, testSecret, "postgres://localhost/quill")
		out, err := execute(t, "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})

	t.Run("env file seeds secrets", func(t *testing.T) {
		setEnv(t, "", "")
		path := filepath.Join(t.TempDir(), "quill.env")
		content := config.EnvSecretKey + "=" + testSecret + "\n" + config.EnvDatabaseURL + "=postgres://localhost/quill\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		out, err := execute(t, "config", "validate", "--env-file", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})

	t.Run("xdg config file", func(t *testing.T) {
		setEnv(t, testSecret, "postgres://localhost/quill")
		dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "quill")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  format: xml\n"), 0o600))

		_, err := execute(t, "config", "validate")
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("config file", func(t *testing.T) {
		setEnv(t, testSecret, "postgres://localhost/quill")
		path := filepath.Join(t.TempDir(), "quill.yaml")
		require.NoError(t, os.WriteFile(path, []byte("http:\n  base_url: not a url\n"), 0o600))

		_, err := execute(t, "config", "validate", "--config", path)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}
