package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend(t.Name())
	return NewRegistry(backend, slog.New(slog.NewTextHandler(io.Discard, nil))), backend
}

func TestRegistry_LookupUnclaimed(t *testing.T) {
	reg, _ := newTestRegistry(t)

	token, found, err := reg.Lookup(context.Background(), "cats")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, token.IsEmpty())

	_, _, err = reg.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, interfaces.ErrInvalidCollectionID)
}

func TestRegistry_ReserveCommit(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.ReserveCheck(ctx, "cats"))
	require.NoError(t, reg.Reserve(ctx, "cats"))
	assert.True(t, reg.Reserved("cats"))

	// placeholders are invisible to Lookup but block further reservations
	_, found, err := reg.Lookup(ctx, "cats")
	require.NoError(t, err)
	assert.False(t, found)
	assert.ErrorIs(t, reg.ReserveCheck(ctx, "cats"), interfaces.ErrAlreadyExists)
	assert.ErrorIs(t, reg.Reserve(ctx, "cats"), interfaces.ErrAlreadyExists)

	require.NoError(t, reg.Commit(ctx, "cats", "CATS-abcdef"))
	assert.False(t, reg.Reserved("cats"))

	token, found, err := reg.Lookup(ctx, "cats")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, interfaces.TokenIdentifier("CATS-abcdef"), token)

	assert.ErrorIs(t, reg.ReserveCheck(ctx, "cats"), interfaces.ErrAlreadyExists)
	assert.ErrorIs(t, reg.Reserve(ctx, "cats"), interfaces.ErrAlreadyExists)
}

func TestRegistry_Release(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Reserve(ctx, "cats"))
	reg.Release("cats")
	assert.False(t, reg.Reserved("cats"))
	require.NoError(t, reg.Reserve(ctx, "cats"))

	// releasing an unknown identifier is a no-op
	reg.Release("dogs")
}

func TestRegistry_CommitIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Commit(ctx, "cats", "CATS-abcdef"))
	require.NoError(t, reg.Commit(ctx, "cats", "CATS-abcdef"))

	err := reg.Commit(ctx, "cats", "CATS-123456")
	assert.ErrorIs(t, err, interfaces.ErrConflictingCommit)

	token, _, err := reg.Lookup(ctx, "cats")
	require.NoError(t, err)
	assert.Equal(t, interfaces.TokenIdentifier("CATS-abcdef"), token)

	assert.Error(t, reg.Commit(ctx, "dogs", ""))
}

func TestRegistry_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	reg, backend := newTestRegistry(t)

	require.NoError(t, reg.Commit(ctx, "cats", "CATS-abcdef"))
	require.NoError(t, reg.Reserve(ctx, "dogs"))

	restarted := NewRegistry(backend, slog.New(slog.NewTextHandler(io.Discard, nil)))
	token, found, err := restarted.Lookup(ctx, "cats")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, interfaces.TokenIdentifier("CATS-abcdef"), token)

	// reservations are process-local
	assert.False(t, restarted.Reserved("dogs"))
}

func TestRegistry_List(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	require.NoError(t, reg.Commit(ctx, "dogs", "DOGS-000001"))
	require.NoError(t, reg.Commit(ctx, "cats", "CATS-abcdef"))
	require.NoError(t, reg.Reserve(ctx, "birds"))

	collections, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.Collection{
		{Identifier: "cats", TokenIdentifier: "CATS-abcdef"},
		{Identifier: "dogs", TokenIdentifier: "DOGS-000001"},
	}, collections)
}

func TestRegistry_ConcurrentReserve(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	const contenders = 16
	var wg sync.WaitGroup
	results := make(chan error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- reg.Reserve(ctx, "cats")
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, interfaces.ErrAlreadyExists):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, contenders-1, lost)
}
