package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_PutGet(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(storage.NewMemoryBackend(t.Name()), newTestLogger())

	status := &RequestStatus{
		RequestID:     "req-1",
		Identifier:    "cats",
		IdentifierKey: interfaces.CollectionID("cats").Key(),
		Owner:         ownerX,
		Payment:       interfaces.NewAmountFromUint64(1),
		Stage:         StageIssuing,
	}
	require.NoError(t, j.Put(ctx, status))
	assert.False(t, status.CreatedAt.IsZero())
	created := status.CreatedAt

	time.Sleep(time.Millisecond)
	status.Stage = StageRolesPending
	status.Token = "CATS-abcd"
	require.NoError(t, j.Put(ctx, status))
	assert.Equal(t, created, status.CreatedAt)
	assert.True(t, status.UpdatedAt.After(created))

	got, err := j.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, StageRolesPending, got.Stage)
	assert.Equal(t, interfaces.TokenIdentifier("CATS-abcd"), got.Token)
	assert.Equal(t, "1", got.Payment.String())

	id, err := got.CollectionID()
	require.NoError(t, err)
	assert.Equal(t, interfaces.CollectionID("cats"), id)

	_, err = j.Get(ctx, "req-2")
	assert.ErrorIs(t, err, interfaces.ErrUnknownRequest)
}

func TestJournal_ListOrdered(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend(t.Name())
	j := NewJournal(backend, newTestLogger())

	// keys sort opposite to creation order
	for _, id := range []string{"c", "b", "a"} {
		require.NoError(t, j.Put(ctx, &RequestStatus{RequestID: id, Stage: StageIssuing}))
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, backend.Store(ctx, interfaces.RequestsNamespace, "broken", []byte("{")))

	statuses, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	assert.Equal(t, "c", statuses[0].RequestID)
	assert.Equal(t, "a", statuses[2].RequestID)
}

func TestRequestStatus_PartiallyProvisioned(t *testing.T) {
	assert.False(t, (&RequestStatus{Stage: StageFailed}).PartiallyProvisioned())
	assert.False(t, (&RequestStatus{Stage: StageCompleted, Token: "CATS-abcd"}).PartiallyProvisioned())
	assert.True(t, (&RequestStatus{Stage: StageFailed, Token: "CATS-abcd"}).PartiallyProvisioned())
}
