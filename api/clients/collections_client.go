package clients

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/flashbots/go-utils/signature"
	"github.com/ruteri/collection-provisioning-backend/api"
	"github.com/ruteri/collection-provisioning-backend/provisioning"
)

// ErrNotFound is returned when the server has no record of the queried collection or request.
var ErrNotFound = errors.New("not found")

// CollectionsClient implements api.CollectionsProvider over HTTP.
// Create requests are signed with Signer; reads need no signer.
type CollectionsClient struct {
	// ServerAddr is the base URL of the provisioning server
	ServerAddr string

	// Signer signs create requests
	Signer *signature.Signer

	client *http.Client
}

// NewCollectionsClient creates a client for the server at serverAddr.
func NewCollectionsClient(serverAddr string, signer *signature.Signer, timeout time.Duration) *CollectionsClient {
	return &CollectionsClient{
		ServerAddr: serverAddr,
		Signer:     signer,
		client:     &http.Client{Timeout: timeout},
	}
}

// CreateCollection signs and submits a create request.
func (c *CollectionsClient) CreateCollection(req api.CreateCollectionRequest) (*api.CreateCollectionResponse, error) {
	if c.Signer == nil {
		return nil, errors.New("create requests must be signed: no signer configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	sig, err := c.Signer.Create(body)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.ServerAddr+"/api/collections", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(api.SignatureHeader, sig)

	var resp api.CreateCollectionResponse
	if err := c.do(httpReq, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCollection returns the committed record for identifier, or ErrNotFound.
func (c *CollectionsClient) GetCollection(identifier string) (*api.CollectionResponse, error) {
	var resp api.CollectionResponse
	if err := c.get("/api/collections/"+url.PathEscape(identifier), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CollectionsClient) ListCollections() (*api.CollectionsResponse, error) {
	var resp api.CollectionsResponse
	if err := c.get("/api/collections", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CollectionsClient) GetCreators() (*api.CreatorsResponse, error) {
	var resp api.CreatorsResponse
	if err := c.get("/api/creators", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRequestStatus returns the status of a provisioning request, or ErrNotFound.
func (c *CollectionsClient) GetRequestStatus(requestID string) (*provisioning.RequestStatus, error) {
	var resp provisioning.RequestStatus
	if err := c.get("/api/requests/"+url.PathEscape(requestID), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *CollectionsClient) get(path string, out any) error {
	httpReq, err := http.NewRequest(http.MethodGet, c.ServerAddr+path, nil)
	if err != nil {
		return err
	}
	return c.do(httpReq, http.StatusOK, out)
}

func (c *CollectionsClient) do(httpReq *http.Request, expected int, out any) error {
	httpClient := c.client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not request %s: %w", httpReq.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expected {
		bodyBytes, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, bytes.TrimSpace(bodyBytes))
		}
		return fmt.Errorf("%s returned error %d: %s", httpReq.URL.Path, resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse response: %w", err)
	}
	return nil
}
