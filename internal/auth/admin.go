package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"stockbrief/internal/types"
)

// bcryptCost is the cost factor for operator key hashes.
const bcryptCost = 12

// ErrAdminDisabled is returned when no admin key hash is configured.
var ErrAdminDisabled = errors.New("admin access is not configured")

// AdminKeyVerifier checks the X-Admin-Key header against a bcrypt hash.
type AdminKeyVerifier struct {
	hash types.SecretString
}

// NewAdminKeyVerifier creates a verifier. An empty hash disables admin access.
func NewAdminKeyVerifier(hash types.SecretString) *AdminKeyVerifier {
	return &AdminKeyVerifier{hash: hash}
}

// Enabled reports whether a hash is configured.
func (v *AdminKeyVerifier) Enabled() bool {
	return v != nil && !v.hash.IsEmpty()
}

// Verify returns nil when key matches the configured hash.
func (v *AdminKeyVerifier) Verify(key string) error {
	if !v.Enabled() {
		return ErrAdminDisabled
	}
	if key == "" {
		return types.NewAppError(types.ErrCodeAuthAdminKey, "missing admin key", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(v.hash.Unmask()), []byte(key)); err != nil {
		return types.NewAppError(types.ErrCodeAuthAdminKey, "invalid admin key", nil)
	}
	return nil
}

// HashAdminKey produces the value for ADMIN_API_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	if len(key) < 16 {
		return "", errors.New("admin key must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
