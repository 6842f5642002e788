package mocks

import (
	"context"

	"github.com/brettbedarf/memvfs"
	"github.com/stretchr/testify/mock"
)

// MockContentSource implements memvfs.ContentSource for testing across packages
type MockContentSource struct {
	mock.Mock
}

func (m *MockContentSource) Content(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context) []byte); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

var _ memvfs.ContentSource = (*MockContentSource)(nil)

// MockSourceProvider implements adapters.SourceProvider for testing across packages
type MockSourceProvider struct {
	mock.Mock
}

func (m *MockSourceProvider) NewSource(raw []byte) (memvfs.ContentSource, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(memvfs.ContentSource), args.Error(1)
}
