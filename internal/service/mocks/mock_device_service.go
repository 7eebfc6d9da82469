package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"attstream/internal/model"
	"attstream/internal/service"
)

type MockDeviceService struct {
	mock.Mock
}

func (m *MockDeviceService) Register(ctx context.Context, in service.RegisterDeviceInput) (*model.Device, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceService) List(ctx context.Context, limit, offset int) (*service.DeviceListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeviceListResult), args.Error(1)
}

func (m *MockDeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *MockDeviceService) Enable(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDeviceService) Disable(ctx context.Context, id string, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockDeviceService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
