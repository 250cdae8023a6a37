// Code generated manually. DO NOT EDIT.

package mocks

import (
	"context"

	"github.com/guttosm/offline-cache/internal/domain/model"
	"github.com/guttosm/offline-cache/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockBlobRepositoryInterface struct {
	mock.Mock
}

func (m *MockBlobRepositoryInterface) Open(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBlobRepositoryInterface) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CacheEntry), args.Error(1)
}

func (m *MockBlobRepositoryInterface) Put(ctx context.Context, entry *model.CacheEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockBlobRepositoryInterface) Delete(ctx context.Context, keys ...string) (model.CleanupCount, error) {
	args := m.Called(ctx, keys)
	return args.Get(0).(model.CleanupCount), args.Error(1)
}

func (m *MockBlobRepositoryInterface) List(ctx context.Context, filter repository.ListFilter) ([]model.EntryMeta, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EntryMeta), args.Error(1)
}

func (m *MockBlobRepositoryInterface) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBlobRepositoryInterface) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBlobRepositoryInterface) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
