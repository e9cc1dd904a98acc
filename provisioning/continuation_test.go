package provisioning

import (
	"encoding/json"
	"testing"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContinuation_EncodeDecode(t *testing.T) {
	cont := Continuation{
		RequestID:  "2f1e",
		Stage:      StageRolesPending,
		Identifier: interfaces.CollectionID([]byte{'c', 0x00, 0xff}),
		Name:       "Cats",
		Ticker:     "CAT",
		Owner:      ownerX,
		Payment:    interfaces.NewAmountFromUint64(50000000000000000),
		Handle:     "CATS-abcd",
	}

	data, err := cont.Encode()
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, float64(1), wire["v"])
	assert.Equal(t, "6300ff", wire["identifier"])

	decoded, err := DecodeContinuation(data)
	require.NoError(t, err)
	assert.Equal(t, cont.RequestID, decoded.RequestID)
	assert.Equal(t, cont.Stage, decoded.Stage)
	assert.Equal(t, cont.Identifier, decoded.Identifier)
	assert.Equal(t, cont.Owner, decoded.Owner)
	assert.Equal(t, cont.Payment.String(), decoded.Payment.String())
	assert.Equal(t, cont.Handle, decoded.Handle)
}

func TestDecodeContinuation_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `cats`},
		{"wrong version", `{"v":2,"request_id":"r","stage":"Issuing","identifier":"63617473"}`},
		{"no request id", `{"v":1,"stage":"Issuing","identifier":"63617473"}`},
		{"terminal stage", `{"v":1,"request_id":"r","stage":"Completed","identifier":"63617473"}`},
		{"requested stage", `{"v":1,"request_id":"r","stage":"Requested","identifier":"63617473"}`},
		{"bad identifier", `{"v":1,"request_id":"r","stage":"Issuing","identifier":"zz"}`},
		{"empty identifier", `{"v":1,"request_id":"r","stage":"Issuing","identifier":""}`},
		{"roles without handle", `{"v":1,"request_id":"r","stage":"RolesPending","identifier":"63617473"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeContinuation([]byte(tt.data))
			assert.Error(t, err)
		})
	}

	_, err := DecodeContinuation([]byte(`{"v":1,"request_id":"r","stage":"Failed","identifier":"63617473"}`))
	assert.ErrorIs(t, err, interfaces.ErrStageMismatch)
}

func TestStage(t *testing.T) {
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageIssuing.Terminal())

	op, ok := StageOwnershipPending.awaits()
	assert.True(t, ok)
	assert.Equal(t, interfaces.OperationTransferOwnership, op)

	_, ok = StageRequested.awaits()
	assert.False(t, ok)

	assert.ErrorIs(t, StageRolesPending.failureKind(), interfaces.ErrRoleConfigurationFailed)
	assert.ErrorIs(t, StageIssuing.failureKind(), interfaces.ErrIssueFailed)
}
