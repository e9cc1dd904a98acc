package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// MemoryBackend keeps records in process memory. It does not survive restarts
// and is intended for tests and ephemeral deployments.
type MemoryBackend struct {
	mu      sync.RWMutex
	name    string
	records map[interfaces.Namespace]map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{
		name:    name,
		records: make(map[interfaces.Namespace]map[string][]byte),
	}
}

func (b *MemoryBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.records[ns][key]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.records[ns] == nil {
		b.records[ns] = make(map[string][]byte)
	}
	b.records[ns][key] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.records[ns]))
	for key := range b.records[ns] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *MemoryBackend) Available(ctx context.Context) bool {
	return true
}

func (b *MemoryBackend) Name() string {
	return fmt.Sprintf("memory-%s", b.name)
}

func (b *MemoryBackend) LocationURI() string {
	return fmt.Sprintf("memory://%s", b.name)
}
