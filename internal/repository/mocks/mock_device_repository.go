package mocks

import (
	"context"
	"time"

	"attstream/internal/model"
	"attstream/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) FindByID(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Device], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Device]), args.Error(1)
}

func (m *MockDeviceRepository) ListEnabled(ctx context.Context) ([]model.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *MockDeviceRepository) SetEnabled(ctx context.Context, id string, enabled bool, reason string) error {
	args := m.Called(ctx, id, enabled, reason)
	return args.Error(0)
}

func (m *MockDeviceRepository) MarkFailing(ctx context.Context, id string, since time.Time) error {
	args := m.Called(ctx, id, since)
	return args.Error(0)
}

func (m *MockDeviceRepository) ClearFailing(ctx context.Context, id string, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

func (m *MockDeviceRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
