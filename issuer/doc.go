// Package issuer provides interfaces.ExternalIssuer implementations.
//
// OnchainIssuer drives an issuer system contract through go-ethereum: every
// call is submitted as a transaction and a watcher goroutine turns the mined
// receipt into a Completion. SimulatedIssuer runs the same protocol in process,
// enforcing the issuer's naming and payment rules, and is used for local
// deployments and tests. MockIssuer is a testify mock.
//
// All implementations deliver exactly one Completion per accepted call to the
// CompletionSink they were constructed with, carrying the callback payload
// untouched. A call that returns an error was not submitted.
package issuer
