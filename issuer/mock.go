package issuer

import (
	"context"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockIssuer mocks interfaces.ExternalIssuer. Tests drive completions by hand,
// typically capturing the callback with mock.Arguments in a Run function.
type MockIssuer struct {
	mock.Mock
}

// Issue mocks the Issue method
func (m *MockIssuer) Issue(ctx context.Context, req interfaces.IssueRequest, cb []byte) error {
	args := m.Called(ctx, req, cb)
	return args.Error(0)
}

// SetRoles mocks the SetRoles method
func (m *MockIssuer) SetRoles(ctx context.Context, owner interfaces.Address, token interfaces.TokenIdentifier, roles interfaces.RoleSet, cb []byte) error {
	args := m.Called(ctx, owner, token, roles, cb)
	return args.Error(0)
}

// TransferOwnership mocks the TransferOwnership method
func (m *MockIssuer) TransferOwnership(ctx context.Context, token interfaces.TokenIdentifier, newOwner interfaces.Address, cb []byte) error {
	args := m.Called(ctx, token, newOwner, cb)
	return args.Error(0)
}
