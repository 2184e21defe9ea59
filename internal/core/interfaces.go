package core

import (
	"context"

	"stockbrief/internal/types"
)

// Authenticator decouples the HTTP layer from the identity backend
// (Supabase Auth or local JWT verification), allowing for easy mocking in
// tests. auth.RemoteResolver and auth.JWTResolver satisfy it.
type Authenticator interface {
	// ResolveToken returns the caller behind a bearer token.
	//
	// Distinct Error Codes:
	// - auth_token_missing when the token is empty.
	// - auth_token_invalid when the token is malformed or unknown.
	// - auth_token_expired when the token is well-formed but expired.
	// - upstream_* when the identity provider could not be reached.
	ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error)
}

// AdminKeyChecker verifies the operator key presented on admin routes.
// auth.AdminKeyVerifier satisfies it.
type AdminKeyChecker interface {
	// Enabled reports whether an admin key is configured at all.
	Enabled() bool
	// Verify returns an auth_admin_key_invalid AppError on mismatch.
	Verify(key string) error
}
