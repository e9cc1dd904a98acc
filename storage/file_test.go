package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseBackend runs the behaviour shared by every key/value backend.
func exerciseBackend(t *testing.T, backend interfaces.StorageBackend) {
	t.Helper()
	ctx := context.Background()

	require.True(t, backend.Available(ctx))

	_, err := backend.Fetch(ctx, interfaces.CollectionsNamespace, testKey)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	require.NoError(t, backend.Store(ctx, interfaces.CollectionsNamespace, testKey, []byte("v1")))
	require.NoError(t, backend.Store(ctx, interfaces.CollectionsNamespace, testKey, []byte("v2")))
	require.NoError(t, backend.Store(ctx, interfaces.CollectionsNamespace, "646f6773", []byte("dogs")))

	data, err := backend.Fetch(ctx, interfaces.CollectionsNamespace, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	// namespaces do not leak into each other
	_, err = backend.Fetch(ctx, interfaces.RequestsNamespace, testKey)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	keys, err := backend.List(ctx, interfaces.CollectionsNamespace)
	require.NoError(t, err)
	assert.Equal(t, []string{testKey, "646f6773"}, keys)

	keys, err = backend.List(ctx, interfaces.CreatorsNamespace)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Error(t, backend.Store(ctx, interfaces.CollectionsNamespace, "../escape", []byte("x")))
	assert.Error(t, backend.Store(ctx, interfaces.CollectionsNamespace, "", []byte("x")))
}

func TestFileBackend(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)

	exerciseBackend(t, backend)

	assert.FileExists(t, filepath.Join(dir, "collections", testKey))
	assert.Equal(t, "file://"+dir, backend.LocationURI())

	// leftovers of an interrupted write are not listed
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requests", "abc"+tmpSuffix), []byte("x"), 0644))
	keys, err := backend.List(context.Background(), interfaces.RequestsNamespace)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// a second instance over the same directory sees the records
	reopened, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	data, err := reopened.Fetch(context.Background(), interfaces.CollectionsNamespace, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
}

func TestFileBackend_Unavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend, err := NewFileBackend(dir, logger)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	assert.False(t, backend.Available(context.Background()))
}

func TestMemoryBackend(t *testing.T) {
	backend := NewMemoryBackend("test")
	exerciseBackend(t, backend)

	// returned slices are copies
	data, err := backend.Fetch(context.Background(), interfaces.CollectionsNamespace, testKey)
	require.NoError(t, err)
	data[0] = 'x'
	again, err := backend.Fetch(context.Background(), interfaces.CollectionsNamespace, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), again)
}

func TestSQLiteBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "collections.sqlite")

	backend, err := NewSQLiteBackend(context.Background(), "file:"+path, "sqlite://"+path, logger)
	require.NoError(t, err)

	exerciseBackend(t, backend)
	require.NoError(t, backend.Close())

	// records survive reopening the database
	reopened, err := NewSQLiteBackend(context.Background(), "file:"+path, "sqlite://"+path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Fetch(context.Background(), interfaces.CollectionsNamespace, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)
	assert.Equal(t, "sql-sqlite3", reopened.Name())
}
