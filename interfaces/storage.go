package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// Namespace separates the durable structures kept in a storage backend.
type Namespace int

const (
	// CollectionsNamespace holds identifier -> token identifier records
	CollectionsNamespace Namespace = iota
	// CreatorsNamespace holds the creator set document
	CreatorsNamespace
	// RequestsNamespace holds the provisioning request journal
	RequestsNamespace
)

// String returns namespace name.
func (ns Namespace) String() string {
	switch ns {
	case CollectionsNamespace:
		return "collections"
	case CreatorsNamespace:
		return "creators"
	case RequestsNamespace:
		return "requests"
	default:
		return "unknown"
	}
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := parsed.Scheme
	switch scheme {
	case "file", "memory", "s3", "ipfs", "vault", "sqlite", "postgres":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme: %q", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// StorageBackend provides durable key/value records grouped by namespace.
// Keys are lowercase hex or uuid strings, safe for use as file names and object keys.
type StorageBackend interface {
	// Fetch retrieves the record stored under key. Returns ErrContentNotFound if absent.
	Fetch(ctx context.Context, ns Namespace, key string) ([]byte, error)

	// Store writes the record, replacing any previous value.
	Store(ctx context.Context, ns Namespace, key string, data []byte) error

	// List returns all keys in the namespace.
	List(ctx context.Context, ns Namespace) ([]string, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, memory://, s3://, ipfs://, vault://, sqlite://, postgres://
	StorageBackendFor(locationURI StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locationURIs []StorageBackendLocation) (StorageBackend, error)
}
