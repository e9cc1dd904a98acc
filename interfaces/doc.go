// Package interfaces defines the core types and contracts of the collection
// provisioning system, separating interface definitions from implementations.
//
// # Components
//
// AuthorizationGate: decides whether a caller may initiate provisioning, backed
// by the creator set fixed at initialization.
//
// CollectionRegistry: durable mapping from a caller-chosen CollectionID to the
// TokenIdentifier assigned by the issuer. Records are claimed exactly once.
//
// ExternalIssuer: the asynchronous collaborator that issues collections, grants
// roles and transfers ownership. Each call reports its outcome as a Completion
// delivered to a CompletionSink.
//
// StorageBackend: namespaced key/value persistence behind both durable
// structures (file, memory, S3, Vault, IPFS, SQL).
//
// # Errors
//
// Provisioning failures are reported as *ProvisioningError whose Kind is one of
// ErrNotAuthorized, ErrAlreadyExists, ErrIssueFailed, ErrRoleConfigurationFailed
// or ErrOwnershipTransferFailed, carrying the issuer's code and message when the
// failure came from the issuer.
package interfaces
