package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// VaultBackend implements a storage backend using the HashiCorp Vault KV v2 engine.
// Records are kept as secrets under {mount}/data/{dataPath}/{namespace}/{key}.
type VaultBackend struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultBackend creates a new Vault storage backend authenticating with a token.
// An empty token falls back to the VAULT_TOKEN environment variable.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "collections")
//   - token: Vault token
//   - log: Structured logger
func NewVaultBackend(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultBackend, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultBackend{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch retrieves a record from Vault.
func (b *VaultBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	start := time.Now()
	path := b.secretPath("data", ns, key)

	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	if secret == nil || secret.Data == nil || secret.Data["data"] == nil {
		b.log.Debug("Record not found in Vault", slog.String("path", path))
		return nil, interfaces.ErrContentNotFound
	}

	// KV v2 wraps the stored map in a "data" field
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}

	content, ok := data["content"].(string)
	if !ok {
		return nil, fmt.Errorf("content key not found in Vault data")
	}

	b.log.Debug("Fetched record from Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return []byte(content), nil
}

// Store writes a record to Vault, creating a new secret version.
func (b *VaultBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	start := time.Now()
	path := b.secretPath("data", ns, key)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"content": string(data),
		},
	}

	if _, err := b.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		b.log.Error("Failed to write to Vault",
			slog.String("path", path),
			"err", err)
		return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored record in Vault",
		slog.String("path", path),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// List returns the keys stored in a namespace using the KV v2 metadata endpoint.
func (b *VaultBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	path := b.secretPath("metadata", ns, "")

	secret, err := b.client.Logical().ListWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	keys := []string{}
	if secret == nil || secret.Data == nil {
		return keys, nil
	}

	raw, _ := secret.Data["keys"].([]interface{})
	for _, k := range raw {
		if s, ok := k.(string); ok && !strings.HasSuffix(s, "/") {
			keys = append(keys, s)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Available checks that Vault is initialized and unsealed.
func (b *VaultBackend) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this storage backend.
func (b *VaultBackend) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *VaultBackend) LocationURI() string {
	return b.locationURI
}

func (b *VaultBackend) secretPath(kind string, ns interfaces.Namespace, key string) string {
	parts := []string{b.mountPath, kind}
	if b.dataPath != "" {
		parts = append(parts, b.dataPath)
	}
	parts = append(parts, ns.String())
	if key != "" {
		parts = append(parts, key)
	}
	return strings.Join(parts, "/")
}
