package provisioning

import "github.com/ruteri/collection-provisioning-backend/interfaces"

// Stage is the position of a request in the provisioning state machine.
type Stage string

const (
	StageRequested        Stage = "Requested"
	StageIssuing          Stage = "Issuing"
	StageRolesPending     Stage = "RolesPending"
	StageOwnershipPending Stage = "OwnershipPending"
	StageCompleted        Stage = "Completed"
	StageFailed           Stage = "Failed"
)

// Terminal reports whether no further transition can leave the stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// awaits returns the issuer operation whose completion advances the stage.
func (s Stage) awaits() (interfaces.IssuerOperation, bool) {
	switch s {
	case StageIssuing:
		return interfaces.OperationIssue, true
	case StageRolesPending:
		return interfaces.OperationSetRoles, true
	case StageOwnershipPending:
		return interfaces.OperationTransferOwnership, true
	default:
		return "", false
	}
}

// failureKind is the error kind reported when the stage's issuer call fails.
func (s Stage) failureKind() error {
	switch s {
	case StageRolesPending:
		return interfaces.ErrRoleConfigurationFailed
	case StageOwnershipPending:
		return interfaces.ErrOwnershipTransferFailed
	default:
		return interfaces.ErrIssueFailed
	}
}
