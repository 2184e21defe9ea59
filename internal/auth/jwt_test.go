package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockbrief/internal/types"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

var testNow = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-123",
		"email": "user@example.com",
		"aud":   "authenticated",
		"role":  "authenticated",
		"iat":   testNow.Add(-time.Minute).Unix(),
		"exp":   testNow.Add(time.Hour).Unix(),
	}
}

func newTestHMACResolver() *JWTResolver {
	return NewHMACResolver(testSecret,
		WithAudience("authenticated"),
		WithTimeFunc(func() time.Time { return testNow }),
	)
}

func TestJWTResolver_HS256Valid(t *testing.T) {
	token := signHS256(t, testSecret, validClaims())

	identity, err := newTestHMACResolver().ResolveToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &types.UserIdentity{ID: "user-123", Email: "user@example.com"}, identity)
}

func TestJWTResolver_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		token  func(t *testing.T) string
		wantCd types.ErrorCode
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				c := validClaims()
				c["exp"] = testNow.Add(-time.Hour).Unix()
				return signHS256(t, testSecret, c)
			},
			wantCd: types.ErrCodeAuthTokenExpired,
		},
		{
			name:   "wrong secret",
			token:  func(t *testing.T) string { return signHS256(t, "another-secret-another-secret-another", validClaims()) },
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				c := validClaims()
				c["aud"] = "anon"
				return signHS256(t, testSecret, c)
			},
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				c := validClaims()
				delete(c, "exp")
				return signHS256(t, testSecret, c)
			},
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				c := validClaims()
				delete(c, "sub")
				return signHS256(t, testSecret, c)
			},
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name: "alg none",
			token: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return s
			},
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name:   "garbage",
			token:  func(*testing.T) string { return "not-a-jwt" },
			wantCd: types.ErrCodeAuthTokenInvalid,
		},
		{
			name:   "empty",
			token:  func(*testing.T) string { return "" },
			wantCd: types.ErrCodeAuthTokenMissing,
		},
	}

	r := newTestHMACResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveToken(context.Background(), tt.token(t))
			require.Error(t, err)
			assert.Equal(t, tt.wantCd, types.CodeOf(err))
		})
	}
}

func TestJWTResolver_LeewayAcceptsSmallSkew(t *testing.T) {
	c := validClaims()
	c["exp"] = testNow.Add(-10 * time.Second).Unix()

	_, err := newTestHMACResolver().ResolveToken(context.Background(), signHS256(t, testSecret, c))
	assert.NoError(t, err)
}

func TestJWTResolver_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	jwks := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":"k1","alg":"RS256","use":"sig","n":%q,"e":%q}]}`,
		enc.EncodeToString(key.PublicKey.N.Bytes()),
		enc.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
	)
	kf, err := keyfunc.NewJWKSetJSON([]byte(jwks))
	require.NoError(t, err)

	r := NewKeyfuncResolver(kf.Keyfunc,
		WithAudience("authenticated"),
		WithTimeFunc(func() time.Time { return testNow }),
	)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	require.NoError(t, err)

	identity, err := r.ResolveToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.ID)

	// An HS256 token must not be accepted by the asymmetric resolver.
	_, err = r.ResolveToken(context.Background(), signHS256(t, testSecret, validClaims()))
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}

func TestJWKSURL(t *testing.T) {
	assert.Equal(t, "https://abc.supabase.co/auth/v1/.well-known/jwks.json", JWKSURL("https://abc.supabase.co/"))
}
