// Package secrets resolves credentials at request time from Vault with an
// environment fallback.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Well-known secret keys
const (
	KeyGoogleAPIKey = "google_api_key"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func GetSecretWithDefault(ctx context.Context, m Manager, key, defaultValue string) string {
	if m == nil {
		return defaultValue
	}
	value, err := m.GetSecret(ctx, key)
	if err != nil || value == "" {
		return defaultValue
	}
	return value
}

// EnvManager reads secrets from explicit values first and the process
// environment second. Keys map to env names by upper-casing them, so
// google_api_key reads GOOGLE_API_KEY.
type EnvManager struct {
	values map[string]string
}

// NewEnvManager creates an EnvManager with optional preset values
func NewEnvManager(values map[string]string) *EnvManager {
	return &EnvManager{values: values}
}

// GetSecret implements Manager
func (m *EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	if v := m.values[key]; v != "" {
		return v, nil
	}
	if v := os.Getenv(EnvName(key)); v != "" {
		return v, nil
	}
	return "", ErrSecretNotFound
}

// EnvName converts a secret key to its environment variable name
func EnvName(key string) string {
	r := strings.NewReplacer("-", "_", ".", "_")
	return strings.ToUpper(r.Replace(key))
}
