package interfaces

import (
	"errors"
	"fmt"
)

// Error kinds reported by the provisioning workflow. Use errors.Is against these
// to classify a *ProvisioningError.
var (
	// ErrNotAuthorized is returned when the caller is not in the creator set.
	ErrNotAuthorized = errors.New("only creators can create collections")

	// ErrAlreadyExists is returned when the identifier is already resolved or in flight.
	ErrAlreadyExists = errors.New("collection already exists")

	// ErrIssueFailed is returned when the issuer rejects or fails the issue call.
	ErrIssueFailed = errors.New("error issuing collection")

	// ErrRoleConfigurationFailed is returned when granting roles on the issued token fails.
	ErrRoleConfigurationFailed = errors.New("error setting collection roles")

	// ErrOwnershipTransferFailed is returned when the ownership transfer fails.
	ErrOwnershipTransferFailed = errors.New("error transferring collection ownership")
)

var (
	// ErrConflictingCommit is returned when committing a different handle for an already committed identifier.
	ErrConflictingCommit = errors.New("conflicting commit for collection identifier")

	// ErrStageMismatch is returned when a completion does not match the stage its request is in.
	ErrStageMismatch = errors.New("completion does not match request stage")

	// ErrUnknownRequest is returned for request ids the journal has no record of.
	ErrUnknownRequest = errors.New("unknown provisioning request")

	// ErrCreatorsNotInitialized is returned when the creator set is queried before initialization.
	ErrCreatorsNotInitialized = errors.New("creator set not initialized")

	// ErrCreatorsImmutable is returned when a different creator set is supplied after initialization.
	ErrCreatorsImmutable = errors.New("creator set already initialized with different members")

	// ErrInvalidRequest is returned when a create request is malformed.
	ErrInvalidRequest = errors.New("invalid create collection request")

	ErrInvalidCollectionID = errors.New("invalid collection identifier")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// ReturnCode is the machine-readable status an issuer reports for a failed call.
type ReturnCode uint32

const (
	ReturnCodeOk                     ReturnCode = 0
	ReturnCodeFunctionNotFound       ReturnCode = 1
	ReturnCodeFunctionWrongSignature ReturnCode = 2
	ReturnCodeContractNotFound       ReturnCode = 3
	ReturnCodeUserError              ReturnCode = 4
	ReturnCodeOutOfGas               ReturnCode = 5
	ReturnCodeAccountCollision       ReturnCode = 6
	ReturnCodeOutOfFunds             ReturnCode = 7
	ReturnCodeCallStackOverFlow      ReturnCode = 8
	ReturnCodeContractInvalid        ReturnCode = 9
	ReturnCodeExecutionFailed        ReturnCode = 10
)

func (c ReturnCode) String() string {
	switch c {
	case ReturnCodeOk:
		return "ok"
	case ReturnCodeFunctionNotFound:
		return "function not found"
	case ReturnCodeFunctionWrongSignature:
		return "wrong signature for function"
	case ReturnCodeContractNotFound:
		return "contract not found"
	case ReturnCodeUserError:
		return "user error"
	case ReturnCodeOutOfGas:
		return "out of gas"
	case ReturnCodeAccountCollision:
		return "account collision"
	case ReturnCodeOutOfFunds:
		return "out of funds"
	case ReturnCodeCallStackOverFlow:
		return "call stack overflow"
	case ReturnCodeContractInvalid:
		return "contract invalid"
	case ReturnCodeExecutionFailed:
		return "execution failed"
	default:
		return fmt.Sprintf("return code %d", uint32(c))
	}
}

// IssuerError is the failure outcome of an asynchronous issuer call.
type IssuerError struct {
	Code    ReturnCode `json:"code"`
	Message string     `json:"message"`
}

func (e *IssuerError) Error() string {
	return fmt.Sprintf("%d (%s): %s", uint32(e.Code), e.Code, e.Message)
}

// NewIssuerError creates an issuer error.
func NewIssuerError(code ReturnCode, format string, args ...any) *IssuerError {
	return &IssuerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ProvisioningError reports why a provisioning request was rejected or aborted.
// Kind is one of the error kind sentinels above.
type ProvisioningError struct {
	Kind       error
	Identifier CollectionID
	RequestID  string
	Issuer     *IssuerError
}

func (e *ProvisioningError) Error() string {
	if e.Issuer != nil {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Identifier, e.Issuer)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Identifier)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Kind
}

// Code returns the issuer return code, or ReturnCodeOk when the failure was not reported by the issuer.
func (e *ProvisioningError) Code() ReturnCode {
	if e.Issuer == nil {
		return ReturnCodeOk
	}
	return e.Issuer.Code
}

// KindName returns a stable name for the error kind, used in metrics and API responses.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, ErrAlreadyExists):
		return "AlreadyExists"
	case errors.Is(err, ErrIssueFailed):
		return "IssueFailed"
	case errors.Is(err, ErrRoleConfigurationFailed):
		return "RoleConfigurationFailed"
	case errors.Is(err, ErrOwnershipTransferFailed):
		return "OwnershipTransferFailed"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidCollectionID), errors.Is(err, ErrInvalidAmount):
		return "InvalidRequest"
	default:
		return "Internal"
	}
}
