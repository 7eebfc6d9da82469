package service

import (
	"context"
	"errors"
	"time"

	"attstream/internal/model"
	"attstream/internal/repository"
)

// ErrInvalidRange is returned when the requested time window is inverted.
var ErrInvalidRange = errors.New("from must be before to")

// AttendanceQuery carries the filters accepted when listing events.
type AttendanceQuery struct {
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// AttendanceListResult is the service-level DTO for paginated events.
type AttendanceListResult struct {
	Items []model.AttendanceEvent `json:"data"`
	Total int                     `json:"total"`
}

// AttendanceService exposes read access to captured punches. Writes only
// happen through the listener.
type AttendanceService interface {
	List(ctx context.Context, q AttendanceQuery) (*AttendanceListResult, error)
}

type attendanceService struct {
	repo repository.AttendanceRepository
}

// NewAttendanceService constructs a new AttendanceService.
func NewAttendanceService(repo repository.AttendanceRepository) AttendanceService {
	return &attendanceService{repo: repo}
}

func (s *attendanceService) List(ctx context.Context, q AttendanceQuery) (*AttendanceListResult, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, ErrInvalidRange
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	filter := repository.AttendanceFilter{
		From: q.From,
		To:   q.To,
		Page: repository.PageQuery{Limit: q.Limit, Offset: q.Offset},
	}
	if q.DeviceID != "" {
		filter.DeviceID = &q.DeviceID
	}

	res, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &AttendanceListResult{Items: res.Items, Total: res.Total}, nil
}
