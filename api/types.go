package api

import (
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/provisioning"
)

// SignatureHeader carries the caller's signature over the request body,
// formatted as "<address>:<signature>".
const SignatureHeader = "X-Flashbots-Signature"

// CollectionsProvider is the request surface of the provisioning server.
type CollectionsProvider interface {
	// CreateCollection starts provisioning and returns the request id.
	CreateCollection(req CreateCollectionRequest) (*CreateCollectionResponse, error)

	// GetCollection returns the committed record for identifier.
	GetCollection(identifier string) (*CollectionResponse, error)

	// ListCollections returns every committed record.
	ListCollections() (*CollectionsResponse, error)

	// GetCreators returns the creator set.
	GetCreators() (*CreatorsResponse, error)

	// GetRequestStatus returns the status of a provisioning request.
	GetRequestStatus(requestID string) (*provisioning.RequestStatus, error)
}

// CreateCollectionRequest is the body of POST /api/collections.
type CreateCollectionRequest struct {
	Identifier string                      `json:"identifier"`
	Name       string                      `json:"name"`
	Ticker     string                      `json:"ticker"`
	Owner      interfaces.Address          `json:"owner"`
	Payment    interfaces.Amount           `json:"payment"`
	Properties *interfaces.TokenProperties `json:"properties,omitempty"`
}

// CreateCollectionResponse is returned once the issue call was submitted.
type CreateCollectionResponse struct {
	RequestID string `json:"request_id"`
}

// CollectionResponse is a committed identifier record.
type CollectionResponse struct {
	Identifier      string                     `json:"identifier"`
	TokenIdentifier interfaces.TokenIdentifier `json:"token_identifier"`
}

type CollectionsResponse struct {
	Collections []CollectionResponse `json:"collections"`
}

type CreatorsResponse struct {
	Creators []interfaces.Address `json:"creators"`
}
