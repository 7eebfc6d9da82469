package mocks

import (
	"context"

	"attstream/internal/model"
	"attstream/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockAttendanceRepository struct {
	mock.Mock
}

func (m *MockAttendanceRepository) Insert(ctx context.Context, ev *model.AttendanceEvent) (bool, error) {
	args := m.Called(ctx, ev)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttendanceRepository) List(ctx context.Context, f repository.AttendanceFilter) (*repository.PageResult[model.AttendanceEvent], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.AttendanceEvent]), args.Error(1)
}
