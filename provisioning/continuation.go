package provisioning

import (
	"encoding/json"
	"fmt"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

const continuationVersion = 1

// Continuation is the request context carried by every issuer call.
type Continuation struct {
	RequestID  string
	Stage      Stage
	Identifier interfaces.CollectionID
	Name       string
	Ticker     string
	Owner      interfaces.Address
	Payment    interfaces.Amount
	Handle     interfaces.TokenIdentifier
}

// continuationWire is the encoded form; the identifier travels hex encoded
// since it may hold arbitrary bytes.
type continuationWire struct {
	Version       int                        `json:"v"`
	RequestID     string                     `json:"request_id"`
	Stage         Stage                      `json:"stage"`
	IdentifierKey string                     `json:"identifier"`
	Name          string                     `json:"name"`
	Ticker        string                     `json:"ticker"`
	Owner         interfaces.Address         `json:"owner"`
	Payment       interfaces.Amount          `json:"payment"`
	Handle        interfaces.TokenIdentifier `json:"handle,omitempty"`
}

// Encode serializes the continuation as an issuer callback payload.
func (c Continuation) Encode() ([]byte, error) {
	return json.Marshal(continuationWire{
		Version:       continuationVersion,
		RequestID:     c.RequestID,
		Stage:         c.Stage,
		IdentifierKey: c.Identifier.Key(),
		Name:          c.Name,
		Ticker:        c.Ticker,
		Owner:         c.Owner,
		Payment:       c.Payment,
		Handle:        c.Handle,
	})
}

// DecodeContinuation parses a callback payload produced by Encode.
func DecodeContinuation(data []byte) (Continuation, error) {
	var wire continuationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Continuation{}, fmt.Errorf("malformed continuation: %w", err)
	}
	if wire.Version != continuationVersion {
		return Continuation{}, fmt.Errorf("unsupported continuation version %d", wire.Version)
	}
	if wire.RequestID == "" {
		return Continuation{}, fmt.Errorf("continuation without request id")
	}
	if _, ok := wire.Stage.awaits(); !ok {
		return Continuation{}, fmt.Errorf("%w: continuation in stage %q", interfaces.ErrStageMismatch, wire.Stage)
	}

	id, err := interfaces.CollectionIDFromKey(wire.IdentifierKey)
	if err != nil {
		return Continuation{}, err
	}
	if err := id.Validate(); err != nil {
		return Continuation{}, err
	}
	if wire.Stage != StageIssuing && wire.Handle.IsEmpty() {
		return Continuation{}, fmt.Errorf("continuation in stage %s without token identifier", wire.Stage)
	}

	return Continuation{
		RequestID:  wire.RequestID,
		Stage:      wire.Stage,
		Identifier: id,
		Name:       wire.Name,
		Ticker:     wire.Ticker,
		Owner:      wire.Owner,
		Payment:    wire.Payment,
		Handle:     wire.Handle,
	}, nil
}
