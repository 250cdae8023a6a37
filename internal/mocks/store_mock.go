// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"
	"time"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/stretchr/testify/mock"
)

// MockStore mocks the persistent store surface used by the services.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key string, data []byte, entryType string) error {
	args := m.Called(ctx, key, data, entryType)
	return args.Error(0)
}

func (m *MockStore) Size(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Stats(ctx context.Context) (model.StoreStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.StoreStats), args.Error(1)
}

func (m *MockStore) CleanupExpired(ctx context.Context) (model.CleanupCount, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.CleanupCount), args.Error(1)
}

func (m *MockStore) CleanupOlderThan(ctx context.Context, age time.Duration) (model.CleanupCount, error) {
	args := m.Called(ctx, age)
	return args.Get(0).(model.CleanupCount), args.Error(1)
}

func (m *MockStore) DeleteByType(ctx context.Context, entryType string) (model.CleanupCount, error) {
	args := m.Called(ctx, entryType)
	return args.Get(0).(model.CleanupCount), args.Error(1)
}

func (m *MockStore) Shrink(ctx context.Context, target int64) (model.CleanupCount, error) {
	args := m.Called(ctx, target)
	return args.Get(0).(model.CleanupCount), args.Error(1)
}

func (m *MockStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
