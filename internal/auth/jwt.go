package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"stockbrief/internal/types"
)

// clockSkew tolerates small drift between this host and the token issuer.
const clockSkew = 30 * time.Second

// supabaseClaims is the subset of a Supabase access token we read.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTResolver verifies Supabase access tokens locally instead of calling the
// Auth API on every request.
type JWTResolver struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// JWTOption configures a JWTResolver.
type JWTOption func(*jwtOptions)

type jwtOptions struct {
	audience string
	now      func() time.Time
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) JWTOption {
	return func(o *jwtOptions) { o.audience = audience }
}

// WithTimeFunc overrides the clock used for exp/nbf checks.
func WithTimeFunc(now func() time.Time) JWTOption {
	return func(o *jwtOptions) { o.now = now }
}

// NewHMACResolver verifies HS256 tokens signed with the project JWT secret.
func NewHMACResolver(secret string, opts ...JWTOption) *JWTResolver {
	key := []byte(secret)
	kf := func(*jwt.Token) (any, error) { return key, nil }
	return newJWTResolver(kf, []string{jwt.SigningMethodHS256.Alg()}, opts...)
}

// NewJWKSResolver verifies asymmetric tokens against the project JWKS. The
// key set refreshes in the background until ctx is cancelled.
func NewJWKSResolver(ctx context.Context, jwksURL string, opts ...JWTOption) (*JWTResolver, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	return NewKeyfuncResolver(k.Keyfunc, opts...), nil
}

// NewKeyfuncResolver verifies RS256 or ES256 tokens using an existing key
// lookup.
func NewKeyfuncResolver(kf jwt.Keyfunc, opts ...JWTOption) *JWTResolver {
	methods := []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodES256.Alg()}
	return newJWTResolver(kf, methods, opts...)
}

// JWKSURL returns the well-known key set location for a Supabase project.
func JWKSURL(projectURL string) string {
	return strings.TrimRight(projectURL, "/") + "/auth/v1/.well-known/jwks.json"
}

func newJWTResolver(kf jwt.Keyfunc, methods []string, opts ...JWTOption) *JWTResolver {
	o := jwtOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if o.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(o.audience))
	}
	if o.now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(o.now))
	}

	return &JWTResolver{
		keyfunc: kf,
		parser:  jwt.NewParser(parserOpts...),
	}
}

// ResolveToken implements Resolver.
func (r *JWTResolver) ResolveToken(_ context.Context, token string) (*types.UserIdentity, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "missing bearer token", nil)
	}

	claims := &supabaseClaims{}
	if _, err := r.parser.ParseWithClaims(token, claims, r.keyfunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "access token has expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid access token", err)
	}

	if claims.Subject == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "access token has no subject", nil)
	}
	return &types.UserIdentity{ID: claims.Subject, Email: claims.Email}, nil
}

var _ Resolver = (*JWTResolver)(nil)
