// Package provisioning implements the collection provisioning state machine.
//
// A request moves through
//
//	Requested -> Issuing -> RolesPending -> OwnershipPending -> Completed
//
// with Failed reachable from every non-terminal stage. Each stage ends with an
// asynchronous issuer call; the Workflow yields and resumes only when the
// issuer's Completion is handed back through OnCompletion, usually by a
// Dispatcher running completions on its own goroutines.
//
// Everything a stage needs travels with the call as a JSON Continuation
// passed as the issuer callback payload, so no in-memory state is assumed
// between a call and its completion. The Journal additionally records each
// request's stage in the requests namespace for status queries, duplicate
// completion detection and recovery after restart.
//
// The registry entry is committed as soon as the issuer resolves a token
// identifier. A failure of a later stage is terminal and is not compensated:
// the request ends in Failed with the registry entry in place, and its status
// records the stage that failed.
package provisioning
