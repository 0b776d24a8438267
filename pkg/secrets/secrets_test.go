package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvManager(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "from-env")
	ctx := context.Background()

	v, err := NewEnvManager(nil).GetSecret(ctx, KeyGoogleAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	v, err = NewEnvManager(map[string]string{KeyGoogleAPIKey: "preset"}).GetSecret(ctx, KeyGoogleAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "preset", v)

	_, err = NewEnvManager(nil).GetSecret(ctx, "missing-key.name")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "MISSING_KEY_NAME", EnvName("missing-key.name"))
}

func TestGetSecretWithDefault(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "d", GetSecretWithDefault(ctx, nil, "k", "d"))
	assert.Equal(t, "d", GetSecretWithDefault(ctx, NewEnvManager(nil), "nope_nope", "d"))
}

func newVaultServer(t *testing.T, data string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/vision-assist" || r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":` + data + `,"metadata":{"created_time":"2024-01-01T00:00:00Z","custom_metadata":null,"deletion_time":"","destroyed":false,"version":1}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVaultManagerReadsKV(t *testing.T) {
	srv := newVaultServer(t, `{"google_api_key":"from-vault"}`)
	m, err := NewVaultManager(VaultConfig{Address: srv.URL, Token: "root", SecretPath: "vision-assist"},
		NewEnvManager(map[string]string{KeyGoogleAPIKey: "fallback"}), nil)
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), KeyGoogleAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-vault", v)
}

func TestVaultManagerFallsBack(t *testing.T) {
	srv := newVaultServer(t, `{"other":"x"}`)
	m, err := NewVaultManager(VaultConfig{Address: srv.URL, Token: "root", SecretPath: "vision-assist"},
		NewEnvManager(map[string]string{KeyGoogleAPIKey: "fallback"}), nil)
	require.NoError(t, err)

	v, err := m.GetSecret(context.Background(), KeyGoogleAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestVaultManagerMissingPathWithoutFallback(t *testing.T) {
	srv := newVaultServer(t, `{}`)
	m, err := NewVaultManager(VaultConfig{Address: srv.URL, Token: "root", SecretPath: "elsewhere"}, nil, nil)
	require.NoError(t, err)

	_, err = m.GetSecret(context.Background(), KeyGoogleAPIKey)
	assert.Error(t, err)
}

func TestNewVaultManagerValidation(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Token: "t"}, nil, nil)
	assert.Error(t, err)
	_, err = NewVaultManager(VaultConfig{Address: "http://127.0.0.1:1"}, nil, nil)
	assert.Error(t, err)
}
