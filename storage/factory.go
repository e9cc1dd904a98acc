package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// StorageBackendFactory creates storage backends from URI strings and manages
// multi-backend configurations for redundant storage.
type StorageBackendFactory struct {
	log *slog.Logger
}

// NewStorageBackendFactory creates a new factory instance that can create storage backends.
func NewStorageBackendFactory(logger *slog.Logger) *StorageBackendFactory {
	return &StorageBackendFactory{
		log: logger,
	}
}

// StorageBackendFor creates a storage backend from a location URI.
// The URI format should be [scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//   - file:///var/lib/collections - Local filesystem storage
//   - memory://name - Process memory, lost on restart
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-east-1&endpoint=host
//   - vault://host:8200/mount/path?tls=false - Vault KV v2, token from VAULT_TOKEN
//   - ipfs://host:5001/mfs-root?timeout=30s - IPFS node MFS
//   - sqlite:///path/db.sqlite or sqlite://memory/name - SQLite through bun
//   - postgres://user:pw@host:5432/db?sslmode=disable - PostgreSQL through bun
func (sf *StorageBackendFactory) StorageBackendFor(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	sf.log.Debug("Creating storage backend", slog.String("scheme", loc.Scheme))

	switch strings.ToLower(loc.Scheme) {
	case "file":
		return sf.createFileBackend(loc)
	case "memory":
		return NewMemoryBackend(loc.Host + loc.Path), nil
	case "s3":
		return sf.createS3Backend(loc)
	case "vault":
		return sf.createVaultBackend(loc)
	case "ipfs":
		return sf.createIPFSBackend(loc)
	case "sqlite":
		return sf.createSQLiteBackend(loc)
	case "postgres":
		return NewPostgresBackend(context.Background(), loc.Raw, redactedURI(loc), sf.log)
	default:
		return nil, fmt.Errorf("%w: unsupported backend scheme: %s", interfaces.ErrInvalidLocationURI, loc.Scheme)
	}
}

// CreateMultiBackend creates a multi-storage backend from a list of location URIs.
// Invalid locations are logged and skipped; an error is returned only if none could be created.
func (sf *StorageBackendFactory) CreateMultiBackend(locations []interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	backends := make([]interfaces.StorageBackend, 0, len(locations))

	for _, loc := range locations {
		backend, err := sf.StorageBackendFor(loc)
		if err != nil {
			sf.log.Warn("Failed to create storage backend",
				"err", err,
				slog.String("scheme", loc.Scheme))
			continue
		}
		backends = append(backends, backend)
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no valid storage backends created")
	}

	return NewMultiStorageBackend(backends, sf.log), nil
}

// createFileBackend handles file:///absolute/path and file://./relative/path.
func (sf *StorageBackendFactory) createFileBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	path := loc.Path
	if loc.Host != "" {
		path = loc.Host + "/" + strings.TrimPrefix(path, "/")
	}

	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI", interfaces.ErrInvalidLocationURI)
	}

	return NewFileBackend(path, sf.log)
}

func (sf *StorageBackendFactory) createS3Backend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	if loc.Host == "" {
		return nil, fmt.Errorf("%w: missing bucket in s3 URI", interfaces.ErrInvalidLocationURI)
	}

	region := loc.GetParam("region")
	if region == "" {
		region = "us-east-1"
	}

	var accessKey, secretKey string
	if loc.Auth != "" {
		accessKey, secretKey, _ = strings.Cut(loc.Auth, ":")
	} else {
		sf.log.Debug("No credentials in URI, using default AWS credential chain")
	}

	return NewS3Backend(loc.Host, strings.TrimPrefix(loc.Path, "/"), region, loc.GetParam("endpoint"), accessKey, secretKey, sf.log)
}

// createVaultBackend handles vault://host:port/mount/path. The path's first segment is the mount.
func (sf *StorageBackendFactory) createVaultBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	mount, dataPath, _ := strings.Cut(strings.Trim(loc.Path, "/"), "/")
	if loc.Host == "" || mount == "" {
		return nil, fmt.Errorf("%w: vault URI needs host and mount", interfaces.ErrInvalidLocationURI)
	}

	protocol := "https"
	if loc.GetParam("tls") == "false" {
		protocol = "http"
	}

	return NewVaultBackend(fmt.Sprintf("%s://%s", protocol, loc.Host), mount, dataPath, os.Getenv("VAULT_TOKEN"), sf.log)
}

func (sf *StorageBackendFactory) createIPFSBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	host, port, found := strings.Cut(loc.Host, ":")
	if !found || port == "" {
		port = "5001"
	}
	if host == "" {
		host = "localhost"
	}

	timeout := 30 * time.Second
	if raw := loc.GetParam("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid ipfs timeout: %v", interfaces.ErrInvalidLocationURI, err)
		}
		timeout = parsed
	}

	root := loc.Path
	if root == "" || root == "/" {
		root = "/collections"
	}

	return NewIPFSBackend(host, port, root, timeout, sf.log)
}

// createSQLiteBackend handles sqlite:///path/db.sqlite and sqlite://memory/name.
func (sf *StorageBackendFactory) createSQLiteBackend(loc interfaces.StorageBackendLocation) (interfaces.StorageBackend, error) {
	var dsn string
	switch {
	case loc.Host == "memory":
		name := strings.Trim(loc.Path, "/")
		if name == "" {
			name = "collections"
		}
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	case loc.Host == "" && loc.Path != "":
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000", loc.Path)
	default:
		return nil, fmt.Errorf("%w: sqlite URI needs an absolute path or memory host", interfaces.ErrInvalidLocationURI)
	}

	return NewSQLiteBackend(context.Background(), dsn, loc.Raw, sf.log)
}

func redactedURI(loc interfaces.StorageBackendLocation) string {
	if loc.Auth == "" {
		return loc.Raw
	}
	user, _, _ := strings.Cut(loc.Auth, ":")
	return strings.Replace(loc.Raw, loc.Auth+"@", user+":***@", 1)
}
