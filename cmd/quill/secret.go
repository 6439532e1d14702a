// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// secretBytes is the entropy of a generated signing secret.
const secretBytes = 32

// NewSecretCmd creates the secret subcommand.
func NewSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a fresh signing secret for QUILL_SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

// newSecret returns 256 random bits, hex encoded.
func newSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("SECRET_GENERATE_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}
