package config

import "context"

// SecretProvider abstracts secret retrieval so the loader can use AWS SSM in
// deployed environments and plain environment variables elsewhere.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
