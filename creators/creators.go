// Package creators implements the authorization gate backed by the creator set.
//
// The creator set is supplied once at system start and persisted in the
// creators namespace of a storage backend. Later starts must supply the same
// set; there is no operation that adds or removes a creator.
package creators

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// creatorSetKey is the storage key of the creator set document.
const creatorSetKey = "creator-set"

type creatorSetDocument struct {
	Creators      []interfaces.Address `json:"creators"`
	InitializedAt time.Time            `json:"initialized_at"`
}

// CreatorSet implements interfaces.AuthorizationGate.
type CreatorSet struct {
	mu          sync.RWMutex
	storage     interfaces.StorageBackend
	members     map[interfaces.Address]struct{}
	sorted      []interfaces.Address
	initialized bool
	log         *slog.Logger
}

// NewCreatorSet creates an uninitialized gate. It authorizes nobody until Initialize succeeds.
func NewCreatorSet(storage interfaces.StorageBackend, log *slog.Logger) *CreatorSet {
	return &CreatorSet{
		storage: storage,
		members: make(map[interfaces.Address]struct{}),
		log:     log,
	}
}

// Initialize fixes the creator set. If no set is stored, the given one is persisted.
// If a stored set exists it is loaded when it equals creators, otherwise
// ErrCreatorsImmutable is returned. Calling Initialize twice on one instance fails
// unless the sets match.
func (c *CreatorSet) Initialize(ctx context.Context, creators []interfaces.Address) error {
	wanted := normalize(creators)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		if !slices.Equal(c.sorted, wanted) {
			return interfaces.ErrCreatorsImmutable
		}
		return nil
	}

	data, err := c.storage.Fetch(ctx, interfaces.CreatorsNamespace, creatorSetKey)
	switch {
	case err == nil:
		var stored creatorSetDocument
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to decode stored creator set: %w", err)
		}
		if !slices.Equal(normalize(stored.Creators), wanted) {
			c.log.Error("Configured creators differ from the persisted creator set",
				slog.Int("configured", len(wanted)),
				slog.Int("persisted", len(stored.Creators)))
			return interfaces.ErrCreatorsImmutable
		}
		c.log.Info("Loaded persisted creator set", slog.Int("creators", len(wanted)))
	case errors.Is(err, interfaces.ErrContentNotFound):
		data, err := json.Marshal(creatorSetDocument{Creators: wanted, InitializedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("failed to encode creator set: %w", err)
		}
		if err := c.storage.Store(ctx, interfaces.CreatorsNamespace, creatorSetKey, data); err != nil {
			return fmt.Errorf("failed to persist creator set: %w", err)
		}
		c.log.Info("Persisted creator set", slog.Int("creators", len(wanted)))
	default:
		return fmt.Errorf("failed to fetch creator set: %w", err)
	}

	if len(wanted) == 0 {
		c.log.Warn("Creator set is empty, no caller can create collections")
	}

	for _, addr := range wanted {
		c.members[addr] = struct{}{}
	}
	c.sorted = wanted
	c.initialized = true
	return nil
}

// IsAuthorized reports whether caller is a creator.
func (c *CreatorSet) IsAuthorized(caller interfaces.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.members[caller]
	return c.initialized && ok
}

// Creators returns a copy of the creator set in ascending order.
func (c *CreatorSet) Creators() ([]interfaces.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return nil, interfaces.ErrCreatorsNotInitialized
	}
	return slices.Clone(c.sorted), nil
}

func normalize(addrs []interfaces.Address) []interfaces.Address {
	out := slices.Clone(addrs)
	interfaces.SortAddresses(out)
	return slices.Compact(out)
}
