// Package auth resolves bearer credentials into account identities and
// verifies the operator key that guards the admin routes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"stockbrief/internal/external"
	"stockbrief/internal/types"
)

// Resolver turns a raw bearer token into the account it belongs to. Results
// are never cached; every request validates its token again.
type Resolver interface {
	ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme match is case-insensitive. Returns "" when the header is absent or
// malformed.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}

// RemoteResolver asks the identity provider about every token.
type RemoteResolver struct {
	provider external.IdentityProvider
	logger   *slog.Logger
}

// NewRemoteResolver creates a resolver backed by the identity provider.
func NewRemoteResolver(provider external.IdentityProvider, logger *slog.Logger) *RemoteResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteResolver{provider: provider, logger: logger}
}

// ResolveToken implements Resolver.
func (r *RemoteResolver) ResolveToken(ctx context.Context, token string) (*types.UserIdentity, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing bearer token", nil)
	}

	identity, err := r.provider.GetUser(ctx, token)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			if types.IsUpstream(appErr) {
				r.logger.ErrorContext(ctx, "identity provider unavailable", "error", err)
			}
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamIdentity, "identity lookup failed", err)
	}
	return identity, nil
}

var _ Resolver = (*RemoteResolver)(nil)
