package interfaces

import "context"

// Collection is a committed identifier -> token identifier record.
type Collection struct {
	Identifier      CollectionID    `json:"identifier"`
	TokenIdentifier TokenIdentifier `json:"token_identifier"`
}

// CollectionRegistry is the durable identifier -> token identifier mapping.
// Records are claimed on first commit and never overwritten or removed.
type CollectionRegistry interface {
	// Lookup returns the committed token identifier, and false if the identifier is unclaimed or in flight.
	Lookup(ctx context.Context, id CollectionID) (TokenIdentifier, bool, error)

	// ReserveCheck returns ErrAlreadyExists if the identifier is committed or reserved. It writes nothing.
	ReserveCheck(ctx context.Context, id CollectionID) error

	// Reserve places an in-flight placeholder for the identifier, failing with ErrAlreadyExists
	// if it is committed or already reserved. Placeholders are not visible to Lookup.
	Reserve(ctx context.Context, id CollectionID) error

	// Release drops a placeholder. Releasing an unreserved identifier is a no-op.
	Release(id CollectionID)

	// Commit records the token identifier. Committing the same pair twice is a no-op;
	// a different token identifier for a committed identifier returns ErrConflictingCommit.
	Commit(ctx context.Context, id CollectionID, token TokenIdentifier) error

	// List returns all committed collections.
	List(ctx context.Context) ([]Collection, error)
}

// AuthorizationGate decides whether a caller may initiate provisioning.
type AuthorizationGate interface {
	// IsAuthorized reports whether caller is a creator. It has no side effects.
	IsAuthorized(caller Address) bool

	// Creators returns the creator set in ascending order.
	Creators() ([]Address, error)
}
