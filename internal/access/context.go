// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package access

import "context"

type identityKey struct{}

// WithIdentity returns a context carrying the request's identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by WithIdentity, or nil
// for anonymous requests.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
