package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// MultiStorageBackend implements interfaces.StorageBackend using multiple backends with fallback.
// Writes go to every available backend, reads are served by the first backend holding the key.
type MultiStorageBackend struct {
	backends []interfaces.StorageBackend
	log      *slog.Logger
}

// NewMultiStorageBackend creates a new multi-storage backend with fallback
func NewMultiStorageBackend(backends []interfaces.StorageBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the record from the first available backend that has it.
// ErrContentNotFound is returned only when every reachable backend reported it missing.
func (m *MultiStorageBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	start := time.Now()
	var errs []error
	notFound := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key))
			continue
		}

		data, err := backend.Fetch(ctx, ns, key)
		if err == nil {
			m.log.Debug("Fetched record",
				slog.String("backend_name", backend.Name()),
				slog.String("namespace", ns.String()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		if errors.Is(err, interfaces.ErrContentNotFound) {
			notFound++
			continue
		}

		errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("key", key),
			"err", err)
	}

	if len(errs) == 0 && notFound > 0 {
		return nil, interfaces.ErrContentNotFound
	}
	if len(errs) == 0 {
		return nil, interfaces.ErrBackendUnavailable
	}

	m.log.Error("All backends failed to fetch record",
		slog.String("namespace", ns.String()),
		slog.String("key", key),
		slog.Int("failed_backends", len(errs)),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all backends failed to fetch %s/%s: %w", ns, key, errors.Join(errs...))
}

// Store saves the record to all available backends. It succeeds if at least one write succeeded.
func (m *MultiStorageBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	start := time.Now()
	var success bool
	var errs []error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Store(ctx, ns, key, data); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Warn("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				slog.String("key", key),
				"err", err)
			continue
		}
		success = true
	}

	if !success {
		m.log.Error("All backends failed to store record",
			slog.String("namespace", ns.String()),
			slog.String("key", key),
			slog.Int("failed_backends", len(errs)),
			slog.Duration("duration", time.Since(start)))
		if len(errs) == 0 {
			return interfaces.ErrBackendUnavailable
		}
		return fmt.Errorf("all backends failed to store record: %w", errors.Join(errs...))
	}

	m.log.Debug("Stored record",
		slog.String("namespace", ns.String()),
		slog.String("key", key),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// List returns the union of keys across available backends.
func (m *MultiStorageBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	seen := make(map[string]struct{})
	var errs []error
	var listed bool

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			continue
		}
		keys, err := backend.List(ctx, ns)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			continue
		}
		listed = true
		for _, k := range keys {
			seen[k] = struct{}{}
		}
	}

	if !listed {
		if len(errs) == 0 {
			return nil, interfaces.ErrBackendUnavailable
		}
		return nil, fmt.Errorf("all backends failed to list %s: %w", ns, errors.Join(errs...))
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Available checks if any backend is available
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this backend
func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

// LocationURI returns the combined location of all backends.
func (m *MultiStorageBackend) LocationURI() string {
	var locations []string
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
