package sharestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/threshold-xks/interfaces"
)

// DefaultVaultField is the KV field holding the share document.
const DefaultVaultField = "document"

// VaultConfig describes a share document stored in a Vault KV v2 engine.
type VaultConfig struct {
	// Address is the Vault server address (e.g. https://vault.example.com:8200).
	Address string
	// MountPath is the KV v2 mount (e.g. "secret").
	MountPath string
	// SecretPath is the path within the mount (e.g. "xks/share-2").
	SecretPath string
	// Field is the key within the secret's data. Defaults to "document".
	Field string
	// Token authenticates the read. When empty, VAULT_TOKEN is used.
	Token string
	// CACert is an optional PEM file used to verify the Vault server.
	CACert string
}

// VaultSource reads a share document from HashiCorp Vault.
type VaultSource struct {
	client *api.Client
	path   string
	field  string
	log    *slog.Logger
}

// NewVaultSource creates a Vault share source.
func NewVaultSource(cfg VaultConfig, log *slog.Logger) (*VaultSource, error) {
	mount := strings.Trim(cfg.MountPath, "/")
	secretPath := strings.Trim(cfg.SecretPath, "/")
	if mount == "" || secretPath == "" {
		return nil, errors.New("vault share source requires a mount and a secret path")
	}
	if cfg.Field == "" {
		cfg.Field = DefaultVaultField
	}

	config := api.DefaultConfig()
	config.Address = cfg.Address
	config.Timeout = 30 * time.Second
	if cfg.CACert != "" {
		if err := config.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &VaultSource{
		client: client,
		path:   fmt.Sprintf("%s/data/%s", mount, secretPath),
		field:  cfg.Field,
		log:    log,
	}, nil
}

// Fetch reads the document field from the KV v2 secret.
func (s *VaultSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()

	secret, err := s.client.Logical().ReadWithContext(ctx, s.path)
	if err != nil {
		s.log.Error("Failed to read share document from Vault",
			slog.String("path", s.path),
			"err", err)

		var respErr *api.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("vault denied access to %s: %w", s.path, err)
		}
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no share document at vault path %s", s.path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response for %s", s.path)
	}

	content, ok := data[s.field].(string)
	if !ok {
		return nil, fmt.Errorf("field %q not found in Vault secret %s", s.field, s.path)
	}

	s.log.Info("Fetched share document from Vault",
		slog.String("path", s.path),
		slog.Duration("duration", time.Since(start)))

	return []byte(content), nil
}

// Name returns a unique identifier for this source.
func (s *VaultSource) Name() string {
	return fmt.Sprintf("vault-%s", s.path)
}
