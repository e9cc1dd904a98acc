package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

type collectionRecord struct {
	Identifier      interfaces.CollectionID    `json:"identifier"`
	TokenIdentifier interfaces.TokenIdentifier `json:"token_identifier"`
	CommittedAt     time.Time                  `json:"committed_at"`
}

// Registry implements interfaces.CollectionRegistry over a storage backend.
type Registry struct {
	mu       sync.Mutex
	storage  interfaces.StorageBackend
	reserved map[interfaces.CollectionID]time.Time
	log      *slog.Logger
}

// NewRegistry creates a registry persisting records to storage.
func NewRegistry(storage interfaces.StorageBackend, log *slog.Logger) *Registry {
	return &Registry{
		storage:  storage,
		reserved: make(map[interfaces.CollectionID]time.Time),
		log:      log,
	}
}

// Lookup returns the committed token identifier for id.
func (r *Registry) Lookup(ctx context.Context, id interfaces.CollectionID) (interfaces.TokenIdentifier, bool, error) {
	if err := id.Validate(); err != nil {
		return "", false, err
	}

	record, err := r.fetch(ctx, id)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return record.TokenIdentifier, true, nil
}

// ReserveCheck fails with ErrAlreadyExists if id is committed or reserved.
func (r *Registry) ReserveCheck(ctx context.Context, id interfaces.CollectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.checkFree(ctx, id)
}

// Reserve places an in-flight placeholder for id.
func (r *Registry) Reserve(ctx context.Context, id interfaces.CollectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkFree(ctx, id); err != nil {
		return err
	}

	r.reserved[id] = time.Now()
	r.log.Debug("Reserved collection identifier", slog.String("identifier", id.String()))
	return nil
}

// Release drops the placeholder for id, if any.
func (r *Registry) Release(id interfaces.CollectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reserved[id]; ok {
		delete(r.reserved, id)
		r.log.Debug("Released collection identifier", slog.String("identifier", id.String()))
	}
}

// Commit writes id -> token. The placeholder for id is dropped on success.
func (r *Registry) Commit(ctx context.Context, id interfaces.CollectionID, token interfaces.TokenIdentifier) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if token.IsEmpty() {
		return fmt.Errorf("empty token identifier for %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.fetch(ctx, id)
	switch {
	case err == nil && existing.TokenIdentifier == token:
		delete(r.reserved, id)
		return nil
	case err == nil:
		r.log.Error("Conflicting commit for collection identifier",
			slog.String("identifier", id.String()),
			slog.String("committed", existing.TokenIdentifier.String()),
			slog.String("attempted", token.String()))
		return fmt.Errorf("%w: %s is bound to %s", interfaces.ErrConflictingCommit, id, existing.TokenIdentifier)
	case !errors.Is(err, interfaces.ErrContentNotFound):
		return err
	}

	data, err := json.Marshal(collectionRecord{
		Identifier:      id,
		TokenIdentifier: token,
		CommittedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode collection record: %w", err)
	}

	if err := r.storage.Store(ctx, interfaces.CollectionsNamespace, id.Key(), data); err != nil {
		return fmt.Errorf("failed to store collection record: %w", err)
	}
	delete(r.reserved, id)

	r.log.Info("Committed collection",
		slog.String("identifier", id.String()),
		slog.String("token_identifier", token.String()))
	return nil
}

// List returns all committed collections ordered by storage key.
func (r *Registry) List(ctx context.Context) ([]interfaces.Collection, error) {
	keys, err := r.storage.List(ctx, interfaces.CollectionsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	collections := make([]interfaces.Collection, 0, len(keys))
	for _, key := range keys {
		id, err := interfaces.CollectionIDFromKey(key)
		if err != nil {
			r.log.Warn("Skipping malformed collection key", slog.String("key", key), "err", err)
			continue
		}
		record, err := r.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		collections = append(collections, interfaces.Collection{
			Identifier:      id,
			TokenIdentifier: record.TokenIdentifier,
		})
	}
	return collections, nil
}

// Reserved reports whether id currently holds a placeholder.
func (r *Registry) Reserved(id interfaces.CollectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.reserved[id]
	return ok
}

// checkFree must be called with r.mu held.
func (r *Registry) checkFree(ctx context.Context, id interfaces.CollectionID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if _, ok := r.reserved[id]; ok {
		return fmt.Errorf("%w: %s is being provisioned", interfaces.ErrAlreadyExists, id)
	}

	_, err := r.fetch(ctx, id)
	if err == nil {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyExists, id)
	} else if !errors.Is(err, interfaces.ErrContentNotFound) {
		return err
	}
	return nil
}

func (r *Registry) fetch(ctx context.Context, id interfaces.CollectionID) (*collectionRecord, error) {
	data, err := r.storage.Fetch(ctx, interfaces.CollectionsNamespace, id.Key())
	if err != nil {
		return nil, err
	}

	var record collectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode collection record %s: %w", id.Key(), err)
	}
	return &record, nil
}
