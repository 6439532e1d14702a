// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package xdg locates Quill's files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "quill"

// ConfigFileName is the config file looked up in ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for quill.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns ConfigDir()/config.yaml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

// ExistingConfigFile returns ConfigFile() when it exists and "" when it
// does not. Other stat errors are returned.
func ExistingConfigFile() (string, error) {
	path := ConfigFile()
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Errorf("config path is a directory")
	}
	return path, nil
}
