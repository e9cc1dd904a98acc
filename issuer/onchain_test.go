package issuer

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestChain(t *testing.T) (*simulated.Backend, *bind.TransactOpts) {
	t.Helper()

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, big.NewInt(1337))
	require.NoError(t, err)

	balance := new(big.Int)
	balance.SetString("10000000000000000000", 10) // 10 ETH

	backend := simulated.NewBackend(map[common.Address]types.Account{
		auth.From: {Balance: balance},
	}, simulated.WithBlockGasLimit(8000000))
	t.Cleanup(func() { backend.Close() })

	// the target has no code, skip gas estimation
	auth.GasLimit = 300000
	return backend, auth
}

// nextMined commits blocks until a completion arrives.
func nextMined(t *testing.T, backend *simulated.Backend, sink chanSink) interfaces.Completion {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		backend.Commit()
		select {
		case c := <-sink:
			return c
		case <-deadline:
			t.Fatal("timed out waiting for mined completion")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestOnchainIssuer_NoTransactOpts(t *testing.T) {
	backend, _ := setupTestChain(t)
	iss, err := NewOnchainIssuer(backend.Client(), backend.Client(), common.HexToAddress("0xc0"), make(chanSink, 1), newTestLogger())
	require.NoError(t, err)
	defer iss.Close()

	err = iss.Issue(context.Background(), validIssueRequest(), nil)
	assert.ErrorIs(t, err, ErrNoTransactOpts)
	err = iss.SetRoles(context.Background(), interfaces.Address{1}, "CAT-000000", interfaces.CollectionOwnerRoles, nil)
	assert.ErrorIs(t, err, ErrNoTransactOpts)
	err = iss.TransferOwnership(context.Background(), "CAT-000000", interfaces.Address{1}, nil)
	assert.ErrorIs(t, err, ErrNoTransactOpts)
}

func TestOnchainIssuer_ReceiptOutcomes(t *testing.T) {
	backend, auth := setupTestChain(t)
	sink := make(chanSink, 1)

	iss, err := NewOnchainIssuer(backend.Client(), backend.Client(), common.HexToAddress("0xc0"), sink, newTestLogger())
	require.NoError(t, err)
	defer iss.Close()
	iss.SetTransactOpts(auth)
	iss.SetPollInterval(10 * time.Millisecond)

	ctx := context.Background()

	require.NoError(t, iss.SetRoles(ctx, interfaces.Address{0x42}, "CAT-abcdef", interfaces.CollectionOwnerRoles, []byte("roles-cb")))
	roles := nextMined(t, backend, sink)
	require.True(t, roles.Succeeded(), "%v", roles.Err)
	assert.Equal(t, interfaces.OperationSetRoles, roles.Operation)
	assert.Equal(t, interfaces.TokenIdentifier("CAT-abcdef"), roles.Handle)
	assert.Equal(t, []byte("roles-cb"), roles.Callback)

	// a successful transaction without the TokenIssued event does not resolve a handle
	require.NoError(t, iss.Issue(ctx, validIssueRequest(), []byte("issue-cb")))
	issued := nextMined(t, backend, sink)
	require.False(t, issued.Succeeded())
	assert.Equal(t, interfaces.ReturnCodeExecutionFailed, issued.Err.Code)
	assert.True(t, issued.Handle.IsEmpty())
	assert.Equal(t, []byte("issue-cb"), issued.Callback)
}

func TestOnchainIssuer_Outcome(t *testing.T) {
	iss, err := NewOnchainIssuer(nil, nil, common.HexToAddress("0xc0"), make(chanSink, 1), newTestLogger())
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{Gas: 100000})

	_, ierr := iss.outcome(interfaces.OperationSetRoles, tx, &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 100000}, "CAT-abcdef")
	require.NotNil(t, ierr)
	assert.Equal(t, interfaces.ReturnCodeOutOfGas, ierr.Code)

	_, ierr = iss.outcome(interfaces.OperationSetRoles, tx, &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 30000}, "CAT-abcdef")
	require.NotNil(t, ierr)
	assert.Equal(t, interfaces.ReturnCodeExecutionFailed, ierr.Code)

	// TokenIssued(issuer indexed, token)
	data, err := iss.abi.Events["TokenIssued"].Inputs.NonIndexed().Pack("CATS-abcdef")
	require.NoError(t, err)
	receipt := &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		Logs: []*types.Log{{
			Address: common.HexToAddress("0xc0"),
			Topics:  []common.Hash{iss.abi.Events["TokenIssued"].ID, common.BytesToHash(common.HexToAddress("0x01").Bytes())},
			Data:    data,
		}},
	}
	handle, ierr := iss.outcome(interfaces.OperationIssue, tx, receipt, "")
	assert.Nil(t, ierr)
	assert.Equal(t, interfaces.TokenIdentifier("CATS-abcdef"), handle)

	// events from other contracts are ignored
	receipt.Logs[0].Address = common.HexToAddress("0xc1")
	_, ierr = iss.outcome(interfaces.OperationIssue, tx, receipt, "")
	require.NotNil(t, ierr)
	assert.Equal(t, interfaces.ReturnCodeExecutionFailed, ierr.Code)
}
