package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"attstream/internal/service"
)

type MockAttendanceService struct {
	mock.Mock
}

func (m *MockAttendanceService) List(ctx context.Context, q service.AttendanceQuery) (*service.AttendanceListResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AttendanceListResult), args.Error(1)
}
