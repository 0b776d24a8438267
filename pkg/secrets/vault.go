package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"

	"vision-assist/backend/pkg/logger"
)

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	MountPath  string
	SecretPath string
	Timeout    time.Duration
	MaxRetries int
}

// VaultManager reads secrets from one KV v2 entry and falls back to
// another Manager when the key is absent there
type VaultManager struct {
	client   *vault.Client
	config   VaultConfig
	fallback Manager
	log      *logger.Logger
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(config VaultConfig, fallback Manager, log *logger.Logger) (*VaultManager, error) {
	if config.Address == "" {
		return nil, errors.New("no vault address provided")
	}
	if config.Token == "" {
		return nil, errors.New("no vault token provided")
	}
	if config.MountPath == "" {
		config.MountPath = "secret"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout
	vaultConfig.MaxRetries = config.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	return &VaultManager{
		client:   client,
		config:   config,
		fallback: fallback,
		log:      log.WithComponent("secrets"),
	}, nil
}

// GetSecret retrieves a secret from Vault, with fallback when it is missing there
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	value, err := m.getFromVault(ctx, key)
	if err == nil {
		return value, nil
	}
	if m.fallback == nil {
		return "", err
	}

	m.log.Warn("Secret not available from Vault, using fallback", "key", key, "error", err.Error())
	return m.fallback.GetSecret(ctx, key)
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.config.MountPath).Get(ctx, m.config.SecretPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}

	return value, nil
}
