package storage

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocation(t *testing.T, uri string) interfaces.StorageBackendLocation {
	t.Helper()
	loc, err := interfaces.NewStorageBackendLocation(uri)
	require.NoError(t, err)
	return loc
}

func TestStorageBackendFor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)
	dir := t.TempDir()

	tests := []struct {
		uri          string
		expectedType interface{}
		expectedName string
	}{
		{uri: "file://" + dir, expectedType: &FileBackend{}, expectedName: "file-" + filepath.Base(dir)},
		{uri: "memory://primary", expectedType: &MemoryBackend{}, expectedName: "memory-primary"},
		{uri: "s3://AKID:SECRET@bucket/prefix?region=eu-west-1&endpoint=http://localhost:9000", expectedType: &S3Backend{}, expectedName: "s3-bucket"},
		{uri: "vault://localhost:8200/secret/collections?tls=false", expectedType: &VaultBackend{}, expectedName: "vault-secret-collections"},
		{uri: "ipfs://localhost:5001/collections?timeout=5s", expectedType: &IPFSBackend{}, expectedName: "ipfs-localhost-5001"},
		{uri: "sqlite://memory/factory", expectedType: &SQLBackend{}, expectedName: "sql-sqlite3"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			backend, err := factory.StorageBackendFor(mustLocation(t, tt.uri))
			require.NoError(t, err)
			assert.IsType(t, tt.expectedType, backend)
			assert.Equal(t, tt.expectedName, backend.Name())
		})
	}
}

func TestStorageBackendFor_Invalid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)

	_, err := interfaces.NewStorageBackendLocation("github://owner/repo")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	for _, uri := range []string{"s3:///prefix", "vault://localhost:8200", "sqlite://host/path", "ipfs://localhost:5001/x?timeout=soon"} {
		_, err := factory.StorageBackendFor(mustLocation(t, uri))
		assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI, uri)
	}
}

func TestS3CredentialsAreRedacted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)

	backend, err := factory.StorageBackendFor(mustLocation(t, "s3://AKID:SECRET@bucket/prefix"))
	require.NoError(t, err)
	assert.NotContains(t, backend.LocationURI(), "SECRET")
}

func TestCreateMultiBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)

	multi, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{
		mustLocation(t, "memory://a"),
		mustLocation(t, "sqlite://host/invalid"),
		mustLocation(t, "file://"+t.TempDir()),
	})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)
	assert.Len(t, multi.(*MultiStorageBackend).backends, 2)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{mustLocation(t, "sqlite://host/invalid")})
	assert.Error(t, err)
}
