package registry

import (
	"context"

	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockCollectionRegistry mocks interfaces.CollectionRegistry
type MockCollectionRegistry struct {
	mock.Mock
}

// Lookup mocks the Lookup method
func (m *MockCollectionRegistry) Lookup(ctx context.Context, id interfaces.CollectionID) (interfaces.TokenIdentifier, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.TokenIdentifier), args.Bool(1), args.Error(2)
}

// ReserveCheck mocks the ReserveCheck method
func (m *MockCollectionRegistry) ReserveCheck(ctx context.Context, id interfaces.CollectionID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Reserve mocks the Reserve method
func (m *MockCollectionRegistry) Reserve(ctx context.Context, id interfaces.CollectionID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Release mocks the Release method
func (m *MockCollectionRegistry) Release(id interfaces.CollectionID) {
	m.Called(id)
}

// Commit mocks the Commit method
func (m *MockCollectionRegistry) Commit(ctx context.Context, id interfaces.CollectionID, token interfaces.TokenIdentifier) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

// List mocks the List method
func (m *MockCollectionRegistry) List(ctx context.Context) ([]interfaces.Collection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]interfaces.Collection), args.Error(1)
}
