package external

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrMissingSignature is returned when the signature header is empty.
	ErrMissingSignature = errors.New("missing webhook signature")
	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// LemonSqueezyVerifier checks the X-Signature header, which carries the hex
// HMAC-SHA256 of the raw request body keyed with the signing secret.
type LemonSqueezyVerifier struct{}

// NewLemonSqueezyVerifier creates a verifier.
func NewLemonSqueezyVerifier() *LemonSqueezyVerifier {
	return &LemonSqueezyVerifier{}
}

// Verify implements WebhookVerifier.
func (LemonSqueezyVerifier) Verify(payload []byte, signature string, secret string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, Sign(payload, secret)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the raw HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignHex returns the hex-encoded signature, as sent in X-Signature.
func SignHex(payload []byte, secret string) string {
	return hex.EncodeToString(Sign(payload, secret))
}

var _ WebhookVerifier = (*LemonSqueezyVerifier)(nil)
