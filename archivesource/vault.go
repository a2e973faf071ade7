package archivesource

import (
	"context"
	"fmt"
	"log/slog"

	vault "github.com/hashicorp/vault/api"
)

// VaultSource reads the archive payload from a HashiCorp Vault KV v2 secret.
// The token is taken from the standard VAULT_TOKEN environment variable or
// passed explicitly.
type VaultSource struct {
	client *vault.Client
	mount  string
	path   string
	field  string
	log    *slog.Logger
}

// NewVaultSource creates a Vault archive source.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mount: KV v2 mount path (e.g. "secret")
//   - path: secret path within the mount
//   - field: field of the secret holding the base64 payload
//   - token: Vault token; empty falls back to the environment
func NewVaultSource(address, mount, path, field, token string, log *slog.Logger) (*VaultSource, error) {
	config := vault.DefaultConfig()
	config.Address = address

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	return &VaultSource{
		client: client,
		mount:  mount,
		path:   path,
		field:  field,
		log:    log,
	}, nil
}

// Fetch reads the secret and extracts the payload field. Returns
// ErrArchiveNotFound if the secret or the field is missing.
func (s *VaultSource) Fetch(ctx context.Context) ([]byte, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read Vault secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrArchiveNotFound
	}

	value, ok := secret.Data[s.field].(string)
	if !ok || value == "" {
		return nil, fmt.Errorf("%w: field %q missing or empty", ErrArchiveNotFound, s.field)
	}

	s.log.Debug("Fetched archive payload from Vault",
		slog.String("mount", s.mount),
		slog.String("path", s.path),
		slog.Int("size", len(value)))

	return []byte(value), nil
}

// Available checks the Vault health endpoint.
func (s *VaultSource) Available(ctx context.Context) bool {
	health, err := s.client.Sys().HealthWithContext(ctx)
	return err == nil && health != nil && health.Initialized && !health.Sealed
}

// Name returns a unique identifier for this source.
func (s *VaultSource) Name() string {
	return fmt.Sprintf("vault-%s-%s", s.mount, s.path)
}
