package collections

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/flashbots/go-utils/signature"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/collection-provisioning-backend/api"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/provisioning"
)

// Service is the provisioning surface served over HTTP, implemented by *provisioning.Workflow.
type Service interface {
	CreateCollection(ctx context.Context, caller interfaces.Address, req provisioning.CreateCollectionRequest) (string, error)
	Status(ctx context.Context, requestID string) (*provisioning.RequestStatus, error)
	GetCollection(ctx context.Context, id interfaces.CollectionID) (interfaces.TokenIdentifier, bool, error)
	ListCollections(ctx context.Context) ([]interfaces.Collection, error)
	GetCreators() ([]interfaces.Address, error)
	Ready(ctx context.Context) bool
}

// Handler serves the collections API.
type Handler struct {
	svc     Service
	log     *slog.Logger
	maxBody int64
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log, maxBody: api.DefaultMaxRequestBodyBytes}
}

// SetMaxBodySize overrides the create request body limit.
func (h *Handler) SetMaxBodySize(n int64) {
	if n > 0 {
		h.maxBody = n
	}
}

// Ready reports whether the provisioning service can accept requests.
func (h *Handler) Ready(ctx context.Context) bool {
	return h.svc.Ready(ctx)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/collections", h.HandleCreateCollection)
	r.Get("/api/collections", h.HandleListCollections)
	r.Get("/api/collections/{identifier}", h.HandleGetCollection)
	r.Get("/api/creators", h.HandleGetCreators)
	r.Get("/api/requests/{request_id}", h.HandleGetRequestStatus)
}

// HandleCreateCollection starts provisioning a collection.
//
// URL format: POST /api/collections
//
// The body is a JSON api.CreateCollectionRequest signed by a creator in
// api.SignatureHeader. Responds 202 with api.CreateCollectionResponse once the
// issue call has been submitted.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	} else if err != nil {
		h.log.Error("Failed to read request body", "err", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.maxBody {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	signer, err := signature.Verify(r.Header.Get(api.SignatureHeader), body)
	if err != nil {
		h.log.Debug("Rejected unsigned create request", "err", err)
		http.Error(w, "Invalid signature: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var req api.CreateCollectionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	requestID, err := h.svc.CreateCollection(r.Context(), interfaces.AddressFromCommon(signer), provisioning.CreateCollectionRequest{
		Identifier: interfaces.CollectionID(req.Identifier),
		Name:       req.Name,
		Ticker:     req.Ticker,
		Owner:      req.Owner,
		Payment:    req.Payment,
		Properties: req.Properties,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, api.CreateCollectionResponse{RequestID: requestID})
}

// HandleGetCollection resolves an identifier to its token identifier.
//
// URL format: GET /api/collections/{identifier}
func (h *Handler) HandleGetCollection(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(r.PathValue("identifier"))
	if err != nil {
		http.Error(w, "Invalid identifier", http.StatusBadRequest)
		return
	}

	token, found, err := h.svc.GetCollection(r.Context(), interfaces.CollectionID(raw))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "Collection not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, api.CollectionResponse{Identifier: raw, TokenIdentifier: token})
}

// HandleListCollections returns every committed collection.
//
// URL format: GET /api/collections
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := h.svc.ListCollections(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := api.CollectionsResponse{Collections: make([]api.CollectionResponse, 0, len(collections))}
	for _, c := range collections {
		resp.Collections = append(resp.Collections, api.CollectionResponse{
			Identifier:      c.Identifier.String(),
			TokenIdentifier: c.TokenIdentifier,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetCreators returns the creator set.
//
// URL format: GET /api/creators
func (h *Handler) HandleGetCreators(w http.ResponseWriter, r *http.Request) {
	creators, err := h.svc.GetCreators()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CreatorsResponse{Creators: creators})
}

// HandleGetRequestStatus returns the journaled status of a provisioning request.
//
// URL format: GET /api/requests/{request_id}
func (h *Handler) HandleGetRequestStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context(), r.PathValue("request_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

// statusCode maps provisioning errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrAlreadyExists):
		return http.StatusConflict
	case interfaces.KindName(err) == "InvalidRequest":
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrIssueFailed):
		return http.StatusBadGateway
	case errors.Is(err, interfaces.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrCreatorsNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
