// Package vault resolves infrastructure credentials (Postgres, Redis)
// from HashiCorp Vault. When Vault is disabled the environment-provided
// values pass through untouched.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"ta-signal-bot/config"
)

// InfraSecrets are the credentials the bot pulls from Vault at boot.
type InfraSecrets struct {
	PostgresPassword string `json:"postgres_password"`
	RedisPassword    string `json:"redis_password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cached *InfraSecrets
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{config: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg}, nil
}

// Enabled reports whether Vault lookups are active.
func (c *Client) Enabled() bool { return c.config.Enabled }

// LoadSecrets reads the infrastructure credentials from the KV v2 mount.
// The result is cached for the process lifetime.
func (c *Client) LoadSecrets(ctx context.Context) (*InfraSecrets, error) {
	if !c.config.Enabled {
		return &InfraSecrets{}, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		defer c.mu.RUnlock()
		return c.cached, nil
	}
	c.mu.RUnlock()

	path := fmt.Sprintf("%s/data/%s", c.config.MountPath, c.config.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("vault secret %s not found", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vault secret %s has unexpected shape", path)
	}

	out := &InfraSecrets{
		PostgresPassword: stringField(data, "postgres_password"),
		RedisPassword:    stringField(data, "redis_password"),
	}

	c.mu.Lock()
	c.cached = out
	c.mu.Unlock()
	return out, nil
}

// ApplyTo overlays Vault credentials onto the boot config, leaving
// env-provided values in place when Vault has no entry.
func (c *Client) ApplyTo(ctx context.Context, cfg *config.Config) error {
	secrets, err := c.LoadSecrets(ctx)
	if err != nil {
		return err
	}
	if secrets.PostgresPassword != "" {
		cfg.DatabaseConfig.Password = secrets.PostgresPassword
	}
	if secrets.RedisPassword != "" {
		cfg.RedisConfig.Password = secrets.RedisPassword
	}
	return nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
