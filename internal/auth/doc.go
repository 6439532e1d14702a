// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package auth provides authentication for Quill.
//
// # Credentials
//
// Passwords are stored only as argon2id digests produced by PasswordHasher.
// Digests carry their own parameters, so raising the configured cost never
// invalidates existing accounts; Login re-hashes on the next success.
//
// # Tokens
//
// Sessions and password resets use stateless HS256 tokens. Each kind signs
// with its own key derived from the process secret, so a token of one kind
// never verifies as the other. Rejections carry a TokenError whose reason is
// for logs and metrics; users only ever see one generic message.
//
// # Services
//
//   - Service - registration, login, session resolution, account updates
//   - PasswordResetService - forgot-password flow
//
// Services are created with New*Service constructors that validate dependencies.
package auth
