// Package registry implements the durable collection identifier registry.
//
// A Registry maps caller-chosen collection identifiers to the token identifiers
// assigned by the issuer. Records are persisted through an
// interfaces.StorageBackend in the collections namespace, one record per
// identifier keyed by the identifier's hex encoding.
//
// # Reservations
//
// Between accepting a request and committing its result the issuer call is in
// flight for an arbitrary time. To prevent two requests for the same identifier
// from both passing the existence check, Reserve places an in-memory
// placeholder under the registry mutex. Placeholders are invisible to Lookup
// and List, are dropped by Commit and Release, and do not survive restarts; the
// provisioning journal re-establishes them on recovery.
//
// # Commits
//
// Commits are serialized. A record, once written, is never overwritten:
// committing the same token identifier again is a no-op, while a different one
// fails with interfaces.ErrConflictingCommit.
package registry
