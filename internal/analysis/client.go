package analysis

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"vision-assist/backend/pkg/secrets"
)

// GeneratorProvider hands out a model client for one request
type GeneratorProvider interface {
	Generator(ctx context.Context) (ContentGenerator, error)
}

// GeminiProvider builds a Gemini API client per request with the API key
// resolved at call time, so a rotated key takes effect without a restart
type GeminiProvider struct {
	keys       secrets.Manager
	httpClient *http.Client
}

// NewGeminiProvider creates a provider reading the key from keys
func NewGeminiProvider(keys secrets.Manager, httpClient *http.Client) *GeminiProvider {
	return &GeminiProvider{keys: keys, httpClient: httpClient}
}

// Generator returns ErrConfiguration when no API key is available
func (p *GeminiProvider) Generator(ctx context.Context) (ContentGenerator, error) {
	key := secrets.GetSecretWithDefault(ctx, p.keys, secrets.KeyGoogleAPIKey, "")
	if key == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", ErrConfiguration)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return client.Models, nil
}

// KeyConfigured reports whether an API key can currently be resolved
func (p *GeminiProvider) KeyConfigured(ctx context.Context) bool {
	return secrets.GetSecretWithDefault(ctx, p.keys, secrets.KeyGoogleAPIKey, "") != ""
}
