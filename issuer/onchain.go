package issuer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/metrics"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// IssuerABI is the interface of the issuer system contract.
const IssuerABI = `[
	{"type":"function","name":"issueNonFungible","stateMutability":"payable","inputs":[{"name":"name","type":"string"},{"name":"ticker","type":"string"},{"name":"properties","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"setSpecialRoles","stateMutability":"nonpayable","inputs":[{"name":"token","type":"string"},{"name":"owner","type":"address"},{"name":"roles","type":"string[]"}],"outputs":[]},
	{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","inputs":[{"name":"token","type":"string"},{"name":"newOwner","type":"address"}],"outputs":[]},
	{"type":"event","name":"TokenIssued","anonymous":false,"inputs":[{"name":"issuer","type":"address","indexed":true},{"name":"token","type":"string","indexed":false}]}
]`

const (
	defaultPollInterval   = time.Second
	defaultReceiptTimeout = 5 * time.Minute
)

// tokenIssuedEvent mirrors the TokenIssued event.
type tokenIssuedEvent struct {
	Issuer common.Address
	Token  string
}

// OnchainIssuer implements interfaces.ExternalIssuer on top of an issuer contract.
type OnchainIssuer struct {
	contract *bind.BoundContract
	abi      abi.ABI
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
	sink     interfaces.CompletionSink
	log      *slog.Logger

	pollInterval   time.Duration
	receiptTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	watches sync.WaitGroup
}

// NewOnchainIssuer creates an issuer for the contract at address. It requires a ContractBackend
// for submitting transactions and a DeployBackend for reading receipts.
func NewOnchainIssuer(client bind.ContractBackend, backend bind.DeployBackend, address common.Address, sink interfaces.CompletionSink, log *slog.Logger) (*OnchainIssuer, error) {
	parsed, err := abi.JSON(strings.NewReader(IssuerABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse issuer ABI: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &OnchainIssuer{
		contract:       bind.NewBoundContract(address, parsed, client, client, client),
		abi:            parsed,
		backend:        backend,
		address:        address,
		sink:           sink,
		log:            log,
		pollInterval:   defaultPollInterval,
		receiptTimeout: defaultReceiptTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// SetTransactOpts sets the transaction options required for every issuer call.
// This must be called before submitting any call.
func (i *OnchainIssuer) SetTransactOpts(auth *bind.TransactOpts) {
	i.auth = auth
}

// SetPollInterval sets how often pending receipts are polled.
func (i *OnchainIssuer) SetPollInterval(d time.Duration) {
	i.pollInterval = d
}

// SetReceiptTimeout bounds how long a submitted call may stay unmined before it is reported failed.
func (i *OnchainIssuer) SetReceiptTimeout(d time.Duration) {
	i.receiptTimeout = d
}

// Issue submits issueNonFungible forwarding req.Payment as the transaction value.
func (i *OnchainIssuer) Issue(ctx context.Context, req interfaces.IssueRequest, cb []byte) error {
	opts, err := i.transactOpts(ctx)
	if err != nil {
		return err
	}
	opts.Value = req.Payment.Int()

	tx, err := i.contract.Transact(opts, "issueNonFungible", req.Name, req.Ticker, req.Properties.Flags())
	if err != nil {
		return fmt.Errorf("failed to submit issueNonFungible: %w", err)
	}

	i.watch(tx, interfaces.OperationIssue, "", cb)
	return nil
}

// SetRoles submits setSpecialRoles granting roles on token to owner.
func (i *OnchainIssuer) SetRoles(ctx context.Context, owner interfaces.Address, token interfaces.TokenIdentifier, roles interfaces.RoleSet, cb []byte) error {
	opts, err := i.transactOpts(ctx)
	if err != nil {
		return err
	}

	tx, err := i.contract.Transact(opts, "setSpecialRoles", token.String(), owner.Common(), roles.Strings())
	if err != nil {
		return fmt.Errorf("failed to submit setSpecialRoles: %w", err)
	}

	i.watch(tx, interfaces.OperationSetRoles, token, cb)
	return nil
}

// TransferOwnership submits transferOwnership of token to newOwner.
func (i *OnchainIssuer) TransferOwnership(ctx context.Context, token interfaces.TokenIdentifier, newOwner interfaces.Address, cb []byte) error {
	opts, err := i.transactOpts(ctx)
	if err != nil {
		return err
	}

	tx, err := i.contract.Transact(opts, "transferOwnership", token.String(), newOwner.Common())
	if err != nil {
		return fmt.Errorf("failed to submit transferOwnership: %w", err)
	}

	i.watch(tx, interfaces.OperationTransferOwnership, token, cb)
	return nil
}

// Close stops all receipt watchers. Calls still pending are not reported.
func (i *OnchainIssuer) Close() {
	i.cancel()
	i.watches.Wait()
}

func (i *OnchainIssuer) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if i.auth == nil {
		return nil, ErrNoTransactOpts
	}
	opts := *i.auth
	opts.Context = ctx
	return &opts, nil
}

func (i *OnchainIssuer) watch(tx *types.Transaction, op interfaces.IssuerOperation, handle interfaces.TokenIdentifier, cb []byte) {
	i.log.Debug("Submitted issuer call",
		slog.String("operation", string(op)),
		slog.String("tx", tx.Hash().Hex()))

	i.watches.Add(1)
	go func() {
		defer i.watches.Done()
		start := time.Now()

		completion := interfaces.Completion{Operation: op, Callback: cb, Handle: handle}

		receipt, err := i.waitReceipt(tx.Hash())
		switch {
		case errors.Is(err, context.Canceled):
			i.log.Warn("Issuer stopped before call was mined",
				slog.String("operation", string(op)),
				slog.String("tx", tx.Hash().Hex()))
			return
		case err != nil:
			completion.Err = interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "receipt unavailable: %v", err)
		default:
			completion.Handle, completion.Err = i.outcome(op, tx, receipt, handle)
		}

		metrics.ObserveIssuerCall(string(op), time.Since(start))
		if completion.Err != nil {
			i.log.Warn("Issuer call failed",
				slog.String("operation", string(op)),
				slog.String("tx", tx.Hash().Hex()),
				"err", completion.Err)
		}
		i.sink.Deliver(completion)
	}()
}

func (i *OnchainIssuer) waitReceipt(hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(i.ctx, i.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := i.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			i.log.Debug("Receipt poll failed", slog.String("tx", hash.Hex()), "err", err)
		}

		select {
		case <-ctx.Done():
			if errors.Is(i.ctx.Err(), context.Canceled) {
				return nil, context.Canceled
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// outcome maps a mined receipt to the completion's handle and error.
func (i *OnchainIssuer) outcome(op interfaces.IssuerOperation, tx *types.Transaction, receipt *types.Receipt, handle interfaces.TokenIdentifier) (interfaces.TokenIdentifier, *interfaces.IssuerError) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		if receipt.GasUsed >= tx.Gas() {
			return handle, interfaces.NewIssuerError(interfaces.ReturnCodeOutOfGas, "%s ran out of gas", op)
		}
		return handle, interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "%s reverted", op)
	}

	if op != interfaces.OperationIssue {
		return handle, nil
	}

	eventID := i.abi.Events["TokenIssued"].ID
	for _, l := range receipt.Logs {
		if l.Address != i.address || len(l.Topics) == 0 || l.Topics[0] != eventID {
			continue
		}
		var ev tokenIssuedEvent
		if err := i.contract.UnpackLog(&ev, "TokenIssued", *l); err != nil {
			return "", interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "malformed TokenIssued event: %v", err)
		}
		return interfaces.TokenIdentifier(ev.Token), nil
	}

	return "", interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "no TokenIssued event in receipt")
}
