package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// StatusError describes why a request failed.
type StatusError struct {
	Kind    string                `json:"kind"`
	Code    interfaces.ReturnCode `json:"code"`
	Message string                `json:"message"`
}

// RequestStatus is the journaled state of one provisioning request.
type RequestStatus struct {
	RequestID     string                     `json:"request_id"`
	Identifier    string                     `json:"identifier"`
	IdentifierKey string                     `json:"identifier_key"`
	Caller        interfaces.Address         `json:"caller"`
	Name          string                     `json:"name"`
	Ticker        string                     `json:"ticker"`
	Owner         interfaces.Address         `json:"owner"`
	Payment       interfaces.Amount          `json:"payment"`
	Stage         Stage                      `json:"stage"`
	FailedStage   Stage                      `json:"failed_stage,omitempty"`
	Token         interfaces.TokenIdentifier `json:"token_identifier,omitempty"`
	Error         *StatusError               `json:"error,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
	UpdatedAt     time.Time                  `json:"updated_at"`
}

// CollectionID returns the request's identifier.
func (s *RequestStatus) CollectionID() (interfaces.CollectionID, error) {
	return interfaces.CollectionIDFromKey(s.IdentifierKey)
}

// PartiallyProvisioned reports whether the request failed after the registry entry was committed.
func (s *RequestStatus) PartiallyProvisioned() bool {
	return s.Stage == StageFailed && !s.Token.IsEmpty()
}

// Journal persists request statuses in the requests namespace, keyed by request id.
type Journal struct {
	storage interfaces.StorageBackend
	log     *slog.Logger
}

func NewJournal(storage interfaces.StorageBackend, log *slog.Logger) *Journal {
	return &Journal{storage: storage, log: log}
}

// Put writes the status, stamping UpdatedAt.
func (j *Journal) Put(ctx context.Context, status *RequestStatus) error {
	status.UpdatedAt = time.Now().UTC()
	if status.CreatedAt.IsZero() {
		status.CreatedAt = status.UpdatedAt
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode request status: %w", err)
	}
	if err := j.storage.Store(ctx, interfaces.RequestsNamespace, status.RequestID, data); err != nil {
		return fmt.Errorf("failed to journal request %s: %w", status.RequestID, err)
	}

	j.log.Debug("Journaled request",
		slog.String("request_id", status.RequestID),
		slog.String("stage", string(status.Stage)))
	return nil
}

// Available reports whether the journal's storage can be reached.
func (j *Journal) Available(ctx context.Context) bool {
	return j.storage.Available(ctx)
}

// Get returns the status of requestID or ErrUnknownRequest.
func (j *Journal) Get(ctx context.Context, requestID string) (*RequestStatus, error) {
	data, err := j.storage.Fetch(ctx, interfaces.RequestsNamespace, requestID)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnknownRequest, requestID)
	} else if err != nil {
		return nil, err
	}

	var status RequestStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to decode request status %s: %w", requestID, err)
	}
	return &status, nil
}

// List returns all journaled requests, oldest first.
func (j *Journal) List(ctx context.Context) ([]*RequestStatus, error) {
	keys, err := j.storage.List(ctx, interfaces.RequestsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	statuses := make([]*RequestStatus, 0, len(keys))
	for _, key := range keys {
		status, err := j.Get(ctx, key)
		if err != nil {
			j.log.Warn("Skipping unreadable journal entry", slog.String("request_id", key), "err", err)
			continue
		}
		statuses = append(statuses, status)
	}

	sort.SliceStable(statuses, func(a, b int) bool {
		return statuses[a].CreatedAt.Before(statuses[b].CreatedAt)
	})
	return statuses, nil
}
