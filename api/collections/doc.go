// Package collections serves the collection provisioning API over chi.
//
// Create requests are authenticated by the flashbots signature header: the
// address recovered from the signature over the body is the caller checked
// against the creator set. Read endpoints are public.
//
// Errors are returned as plain text with the status code of their kind:
// NotAuthorized 403, AlreadyExists 409, invalid input 400, issue call not
// submitted 502, unknown request or identifier 404.
package collections
