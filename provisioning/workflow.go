package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/metrics"
)

const (
	journalRetries          = 3
	journalRetryInterval    = 20 * time.Millisecond
	journalRetryMaxInterval = 500 * time.Millisecond
)

// CreateCollectionRequest holds the arguments of a create call.
type CreateCollectionRequest struct {
	Identifier interfaces.CollectionID
	Name       string
	Ticker     string
	Owner      interfaces.Address
	Payment    interfaces.Amount

	// Properties defaults to interfaces.DefaultTokenProperties
	Properties *interfaces.TokenProperties
}

// validateArgs checks everything but the identifier, which is validated before it is reserved.
func (r CreateCollectionRequest) validateArgs() error {
	if r.Name == "" || r.Ticker == "" {
		return fmt.Errorf("%w: name and ticker are required", interfaces.ErrInvalidRequest)
	}
	if r.Owner.IsZero() {
		return fmt.Errorf("%w: owner is required", interfaces.ErrInvalidRequest)
	}
	return nil
}

// Workflow drives provisioning requests through their stages.
type Workflow struct {
	gate     interfaces.AuthorizationGate
	registry interfaces.CollectionRegistry
	issuer   interfaces.ExternalIssuer
	journal  *Journal
	log      *slog.Logger

	mu     sync.Mutex
	active map[string]*requestLock
}

// requestLock serializes completions of one request. refs counts holders and waiters.
type requestLock struct {
	mu   sync.Mutex
	refs int
}

func NewWorkflow(gate interfaces.AuthorizationGate, registry interfaces.CollectionRegistry, issuer interfaces.ExternalIssuer, journal *Journal, log *slog.Logger) *Workflow {
	return &Workflow{
		gate:     gate,
		registry: registry,
		issuer:   issuer,
		journal:  journal,
		log:      log,
		active:   make(map[string]*requestLock),
	}
}

// CreateCollection authorizes the caller, claims the identifier and submits the issue call.
// It returns the request id once the workflow is in Issuing; the outcome is observed through
// Status or the registry. Rejections are *interfaces.ProvisioningError with kind NotAuthorized,
// AlreadyExists or IssueFailed (when the issue call could not be submitted); none of them
// forwards the payment.
//
// Checks run in a fixed order: the caller first, then the identifier and its claim, then the
// remaining arguments. A non-creator always gets NotAuthorized and a taken identifier always
// gets AlreadyExists, whatever else the request carries.
func (w *Workflow) CreateCollection(ctx context.Context, caller interfaces.Address, req CreateCollectionRequest) (string, error) {
	if !w.gate.IsAuthorized(caller) {
		metrics.RecordRequest("NotAuthorized")
		w.log.Info("Rejected create request from non-creator",
			slog.String("caller", caller.String()),
			slog.String("identifier", req.Identifier.String()))
		return "", &interfaces.ProvisioningError{Kind: interfaces.ErrNotAuthorized, Identifier: req.Identifier}
	}

	if err := req.Identifier.Validate(); err != nil {
		metrics.RecordRequest(interfaces.KindName(err))
		return "", err
	}

	if err := w.registry.Reserve(ctx, req.Identifier); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			metrics.RecordRequest("AlreadyExists")
			return "", &interfaces.ProvisioningError{Kind: interfaces.ErrAlreadyExists, Identifier: req.Identifier}
		}
		metrics.RecordRequest("Internal")
		return "", err
	}

	if err := req.validateArgs(); err != nil {
		w.registry.Release(req.Identifier)
		metrics.RecordRequest(interfaces.KindName(err))
		return "", err
	}

	properties := interfaces.DefaultTokenProperties()
	if req.Properties != nil {
		properties = *req.Properties
	}

	status := &RequestStatus{
		RequestID:     uuid.NewString(),
		Identifier:    req.Identifier.String(),
		IdentifierKey: req.Identifier.Key(),
		Caller:        caller,
		Name:          req.Name,
		Ticker:        req.Ticker,
		Owner:         req.Owner,
		Payment:       req.Payment,
		Stage:         StageRequested,
	}
	if err := w.journal.Put(ctx, status); err != nil {
		w.registry.Release(req.Identifier)
		metrics.RecordRequest("Internal")
		return "", err
	}

	cont := Continuation{
		RequestID:  status.RequestID,
		Stage:      StageIssuing,
		Identifier: req.Identifier,
		Name:       req.Name,
		Ticker:     req.Ticker,
		Owner:      req.Owner,
		Payment:    req.Payment,
	}
	cb, err := cont.Encode()
	if err != nil {
		w.registry.Release(req.Identifier)
		metrics.RecordRequest("Internal")
		return "", err
	}

	status.Stage = StageIssuing
	if err := w.journal.Put(ctx, status); err != nil {
		w.registry.Release(req.Identifier)
		metrics.RecordRequest("Internal")
		return "", err
	}

	issueReq := interfaces.IssueRequest{
		Name:       req.Name,
		Ticker:     req.Ticker,
		Payment:    req.Payment,
		Properties: properties,
	}
	// the completion may be handled before Issue returns
	metrics.InflightAdd(1)
	if err := w.issuer.Issue(ctx, issueReq, cb); err != nil {
		metrics.InflightAdd(-1)
		w.registry.Release(req.Identifier)
		metrics.RecordRequest("IssueFailed")
		perr := w.markFailed(ctx, status, StageIssuing, interfaces.ErrIssueFailed,
			interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "issue not submitted: %v", err))
		return "", perr
	}

	metrics.RecordRequest("accepted")
	metrics.RecordTransition(string(StageIssuing))

	w.log.Info("Provisioning request accepted",
		slog.String("request_id", status.RequestID),
		slog.String("identifier", req.Identifier.String()),
		slog.String("ticker", req.Ticker),
		slog.String("owner", req.Owner.String()))

	return status.RequestID, nil
}

// OnCompletion resumes the request named by the completion's continuation.
// Completions of the same request are handled one at a time; a completion that arrives while
// the previous one is still submitting the next call waits for it. It returns ErrStageMismatch
// for completions that do not match the request's journaled stage, and a
// *interfaces.ProvisioningError when the request has been aborted.
func (w *Workflow) OnCompletion(ctx context.Context, c interfaces.Completion) error {
	cont, err := DecodeContinuation(c.Callback)
	if err != nil {
		return err
	}

	if op, _ := cont.Stage.awaits(); op != c.Operation {
		return fmt.Errorf("%w: %s completion for request %s in %s", interfaces.ErrStageMismatch, c.Operation, cont.RequestID, cont.Stage)
	}

	unlock := w.lock(cont.RequestID)
	defer unlock()

	status, err := w.journal.Get(ctx, cont.RequestID)
	if errors.Is(err, interfaces.ErrUnknownRequest) {
		w.log.Warn("Completion for request missing from journal, resuming from continuation",
			slog.String("request_id", cont.RequestID))
		status = statusFromContinuation(cont)
	} else if err != nil {
		return err
	}

	if status.Stage != cont.Stage {
		return fmt.Errorf("%w: request %s is in %s, completion expects %s", interfaces.ErrStageMismatch, cont.RequestID, status.Stage, cont.Stage)
	}

	switch cont.Stage {
	case StageIssuing:
		err = w.onIssued(ctx, cont, status, c)
	case StageRolesPending:
		err = w.onRolesSet(ctx, cont, status, c)
	default:
		err = w.onOwnershipTransferred(ctx, cont, status, c)
	}

	if status.Stage.Terminal() {
		metrics.InflightAdd(-1)
	}
	return err
}

func (w *Workflow) onIssued(ctx context.Context, cont Continuation, status *RequestStatus, c interfaces.Completion) error {
	if !c.Succeeded() {
		w.registry.Release(cont.Identifier)
		return w.markFailed(ctx, status, StageIssuing, interfaces.ErrIssueFailed, c.Err)
	}
	if c.Handle.IsEmpty() {
		w.registry.Release(cont.Identifier)
		return w.markFailed(ctx, status, StageIssuing, interfaces.ErrIssueFailed,
			interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "issuer returned no token identifier"))
	}

	if err := w.registry.Commit(ctx, cont.Identifier, c.Handle); err != nil {
		w.log.Error("Failed to commit issued collection",
			slog.String("request_id", cont.RequestID),
			slog.String("identifier", cont.Identifier.String()),
			slog.String("token_identifier", c.Handle.String()),
			"err", err)
		w.registry.Release(cont.Identifier)
		w.markFailedInternal(ctx, status, StageIssuing, err)
		return err
	}

	cont.Stage = StageRolesPending
	cont.Handle = c.Handle
	status.Stage = StageRolesPending
	status.Token = c.Handle

	return w.advance(ctx, cont, status, func(cb []byte) error {
		return w.issuer.SetRoles(ctx, cont.Owner, cont.Handle, interfaces.CollectionOwnerRoles, cb)
	})
}

func (w *Workflow) onRolesSet(ctx context.Context, cont Continuation, status *RequestStatus, c interfaces.Completion) error {
	if !c.Succeeded() {
		return w.markFailed(ctx, status, StageRolesPending, interfaces.ErrRoleConfigurationFailed, c.Err)
	}

	cont.Stage = StageOwnershipPending
	status.Stage = StageOwnershipPending

	return w.advance(ctx, cont, status, func(cb []byte) error {
		return w.issuer.TransferOwnership(ctx, cont.Handle, cont.Owner, cb)
	})
}

func (w *Workflow) onOwnershipTransferred(ctx context.Context, cont Continuation, status *RequestStatus, c interfaces.Completion) error {
	if !c.Succeeded() {
		return w.markFailed(ctx, status, StageOwnershipPending, interfaces.ErrOwnershipTransferFailed, c.Err)
	}

	status.Stage = StageCompleted
	if err := w.persist(ctx, status); err != nil {
		w.log.Error("Collection provisioned but its completion could not be journaled",
			slog.String("request_id", cont.RequestID),
			slog.String("identifier", cont.Identifier.String()),
			slog.String("token_identifier", cont.Handle.String()),
			"err", err)
		return fmt.Errorf("failed to journal completed request %s: %w", cont.RequestID, err)
	}

	metrics.RecordTransition(string(StageCompleted))

	w.log.Info("Collection provisioned",
		slog.String("request_id", cont.RequestID),
		slog.String("identifier", cont.Identifier.String()),
		slog.String("token_identifier", cont.Handle.String()),
		slog.String("owner", cont.Owner.String()))
	return nil
}

// advance journals the next stage and submits its issuer call with the encoded continuation.
func (w *Workflow) advance(ctx context.Context, cont Continuation, status *RequestStatus, submit func(cb []byte) error) error {
	cb, err := cont.Encode()
	if err != nil {
		w.markFailedInternal(ctx, status, cont.Stage, err)
		return err
	}
	if err := w.persist(ctx, status); err != nil {
		w.markFailedInternal(ctx, status, cont.Stage, err)
		return err
	}

	if err := submit(cb); err != nil {
		return w.markFailed(ctx, status, cont.Stage, cont.Stage.failureKind(),
			interfaces.NewIssuerError(interfaces.ReturnCodeExecutionFailed, "call not submitted: %v", err))
	}

	metrics.RecordTransition(string(cont.Stage))
	w.log.Info("Provisioning request advanced",
		slog.String("request_id", cont.RequestID),
		slog.String("identifier", cont.Identifier.String()),
		slog.String("stage", string(cont.Stage)))
	return nil
}

// markFailed moves the request to Failed and returns the abort error.
func (w *Workflow) markFailed(ctx context.Context, status *RequestStatus, stage Stage, kind error, ierr *interfaces.IssuerError) error {
	id, _ := status.CollectionID()
	perr := &interfaces.ProvisioningError{
		Kind:       kind,
		Identifier: id,
		RequestID:  status.RequestID,
		Issuer:     ierr,
	}

	status.Error = &StatusError{Kind: interfaces.KindName(perr), Code: perr.Code()}
	if ierr != nil {
		status.Error.Message = ierr.Message
	}
	w.journalFailure(ctx, status, stage)
	return perr
}

// markFailedInternal fails the request on an error of our own, not reported by the issuer.
func (w *Workflow) markFailedInternal(ctx context.Context, status *RequestStatus, stage Stage, err error) {
	status.Error = &StatusError{Kind: "Internal", Message: err.Error()}
	w.journalFailure(ctx, status, stage)
}

func (w *Workflow) journalFailure(ctx context.Context, status *RequestStatus, stage Stage) {
	status.Stage = StageFailed
	status.FailedStage = stage
	if err := w.persist(ctx, status); err != nil {
		w.log.Error("Failed to journal failed request", slog.String("request_id", status.RequestID), "err", err)
	}

	metrics.RecordTransition(string(StageFailed))
	metrics.RecordFailure(status.Error.Kind)

	w.log.Error("Provisioning request failed",
		slog.String("request_id", status.RequestID),
		slog.String("identifier", status.Identifier),
		slog.String("failed_stage", string(stage)),
		slog.String("kind", status.Error.Kind),
		slog.Uint64("code", uint64(status.Error.Code)),
		slog.String("message", status.Error.Message),
		slog.Bool("partially_provisioned", status.PartiallyProvisioned()))
}

// lock blocks until the caller holds requestID and returns the matching unlock.
func (w *Workflow) lock(requestID string) func() {
	w.mu.Lock()
	l, ok := w.active[requestID]
	if !ok {
		l = &requestLock{}
		w.active[requestID] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		w.mu.Lock()
		defer w.mu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(w.active, requestID)
		}
	}
}

// persist journals status, retrying transient storage errors with exponential backoff.
func (w *Workflow) persist(ctx context.Context, status *RequestStatus) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = journalRetryInterval
	b.MaxInterval = journalRetryMaxInterval
	b.Reset()

	return backoff.RetryNotify(func() error {
		return w.journal.Put(ctx, status)
	}, backoff.WithContext(backoff.WithMaxRetries(b, journalRetries), ctx), func(err error, next time.Duration) {
		w.log.Warn("Journal write failed, retrying",
			slog.String("request_id", status.RequestID),
			slog.String("stage", string(status.Stage)),
			slog.Duration("backoff", next),
			"err", err)
	})
}

func statusFromContinuation(cont Continuation) *RequestStatus {
	return &RequestStatus{
		RequestID:     cont.RequestID,
		Identifier:    cont.Identifier.String(),
		IdentifierKey: cont.Identifier.Key(),
		Name:          cont.Name,
		Ticker:        cont.Ticker,
		Owner:         cont.Owner,
		Payment:       cont.Payment,
		Stage:         cont.Stage,
		Token:         cont.Handle,
	}
}

// Status returns the journaled state of a request.
func (w *Workflow) Status(ctx context.Context, requestID string) (*RequestStatus, error) {
	return w.journal.Get(ctx, requestID)
}

// GetCollection returns the token identifier committed for id.
func (w *Workflow) GetCollection(ctx context.Context, id interfaces.CollectionID) (interfaces.TokenIdentifier, bool, error) {
	if err := id.Validate(); err != nil {
		return "", false, err
	}
	return w.registry.Lookup(ctx, id)
}

// ListCollections returns every committed collection.
func (w *Workflow) ListCollections(ctx context.Context) ([]interfaces.Collection, error) {
	return w.registry.List(ctx)
}

// Ready reports whether new requests can be journaled.
func (w *Workflow) Ready(ctx context.Context) bool {
	return w.journal.Available(ctx)
}

// GetCreators returns the creator set.
func (w *Workflow) GetCreators() ([]interfaces.Address, error) {
	return w.gate.Creators()
}

// Recover restores in-flight state from the journal after a restart.
// Identifiers of requests still awaiting their issue completion are reserved again.
// Requests that never reached the issuer are failed.
//
// Requests are not resumed. The returned statuses were waiting for an issuer completion when
// the process stopped; issuers track their calls in memory, so these completions are only
// handled if a caller delivers them again with the original continuation. Until then the
// requests keep their stage and need operator attention.
func (w *Workflow) Recover(ctx context.Context) ([]*RequestStatus, error) {
	statuses, err := w.journal.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := []*RequestStatus{}
	for _, status := range statuses {
		switch status.Stage {
		case StageRequested:
			w.markFailedInternal(ctx, status, StageRequested, fmt.Errorf("interrupted before the issue call was submitted"))
		case StageIssuing:
			id, err := status.CollectionID()
			if err != nil {
				w.log.Warn("Skipping journal entry with invalid identifier", slog.String("request_id", status.RequestID), "err", err)
				continue
			}
			if err := w.registry.Reserve(ctx, id); err != nil {
				w.log.Warn("Could not reserve identifier of in-flight request",
					slog.String("request_id", status.RequestID),
					slog.String("identifier", status.Identifier),
					"err", err)
			}
			pending = append(pending, status)
		case StageRolesPending, StageOwnershipPending:
			w.log.Warn("Request was waiting on the issuer when the process stopped",
				slog.String("request_id", status.RequestID),
				slog.String("identifier", status.Identifier),
				slog.String("token_identifier", status.Token.String()),
				slog.String("stage", string(status.Stage)))
			pending = append(pending, status)
		}
	}

	metrics.InflightAdd(len(pending))
	if len(pending) > 0 {
		w.log.Info("Recovered in-flight provisioning requests", slog.Int("count", len(pending)))
	}
	return pending, nil
}
