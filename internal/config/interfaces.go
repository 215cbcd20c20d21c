package config

import "context"

// SecretProvider resolves secret parameter paths to plaintext values. Keys
// absent from the returned map were not found.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
