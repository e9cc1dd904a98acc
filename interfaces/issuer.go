package interfaces

import "context"

// IssuerOperation names an asynchronous issuer call.
type IssuerOperation string

const (
	OperationIssue             IssuerOperation = "issue"
	OperationSetRoles          IssuerOperation = "set_roles"
	OperationTransferOwnership IssuerOperation = "transfer_ownership"
)

// IssueRequest describes a non-fungible collection to issue.
type IssueRequest struct {
	Name       string
	Ticker     string
	Payment    Amount
	Properties TokenProperties
}

// Completion is the eventual outcome of an issuer call, delivered exactly once.
// Callback is the opaque payload handed to the call, returned untouched.
type Completion struct {
	Operation IssuerOperation
	Callback  []byte

	// Handle is set when a successful issue resolves a token identifier.
	Handle TokenIdentifier

	// Err is set when the call failed.
	Err *IssuerError
}

// Succeeded reports whether the call completed without error.
func (c Completion) Succeeded() bool {
	return c.Err == nil
}

// CompletionSink receives issuer completions. Deliver must not block on the workflow
// running the completion; the host schedules it as a separate unit of execution.
type CompletionSink interface {
	Deliver(Completion)
}

// ExternalIssuer issues token collections, assigns roles and transfers ownership.
// Every call is asynchronous: a nil error means the call was submitted and exactly one
// Completion carrying cb will be delivered to the issuer's sink. A non-nil error means
// nothing was submitted and no completion follows.
type ExternalIssuer interface {
	Issue(ctx context.Context, req IssueRequest, cb []byte) error
	SetRoles(ctx context.Context, owner Address, token TokenIdentifier, roles RoleSet, cb []byte) error
	TransferOwnership(ctx context.Context, token TokenIdentifier, newOwner Address, cb []byte) error
}
