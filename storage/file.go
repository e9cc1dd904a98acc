package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// tmpSuffix marks partially written records.
const tmpSuffix = ".tmp"

// FileBackend implements a storage backend using the local file system.
// Records are stored one file per key in a directory per namespace.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a new file storage backend using the specified base directory.
// It creates subdirectories for every namespace if they don't exist.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	for _, ns := range []interfaces.Namespace{interfaces.CollectionsNamespace, interfaces.CreatorsNamespace, interfaces.RequestsNamespace} {
		if err := os.MkdirAll(filepath.Join(baseDir, ns.String()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", ns, err)
		}
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Fetch retrieves a record from the file system.
// Returns ErrContentNotFound if the file doesn't exist.
func (b *FileBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	filePath, err := b.getFilePath(ns, key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrContentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	b.log.Debug("Fetched record from file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes a record to the file system.
// The record is written to a temporary file first and renamed into place.
func (b *FileBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	filePath, err := b.getFilePath(ns, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := filePath + tmpSuffix
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	b.log.Debug("Stored record in file",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// List returns the keys stored in a namespace in ascending order.
func (b *FileBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.baseDir, ns.String()))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tmpSuffix) {
			continue
		}
		keys = append(keys, entry.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Available checks if the file backend is accessible by verifying the base directory exists.
func (b *FileBackend) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *FileBackend) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// getFilePath generates a file path for a namespace and key.
func (b *FileBackend) getFilePath(ns interfaces.Namespace, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(b.baseDir, ns.String(), key), nil
}

// validateKey rejects keys that could escape a namespace directory or prefix.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasSuffix(key, tmpSuffix) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
