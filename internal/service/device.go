package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"attstream/internal/model"
	"attstream/internal/repository"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("device not found")
	ErrNameRequired = errors.New("device name is required")
	ErrHostRequired = errors.New("device host is required")
	ErrInvalidPort  = errors.New("device port must be between 1 and 65535")
)

// DefaultDevicePort is the factory port most terminals listen on.
const DefaultDevicePort = 4370

// RegisterDeviceInput carries the fields accepted when registering a device.
type RegisterDeviceInput struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	CommKey int    `json:"comm_key"`
}

// DeviceListResult is the service-level DTO for paginated devices.
type DeviceListResult struct {
	Items []model.Device `json:"data"`
	Total int            `json:"total"`
}

// DeviceService defines the use cases for managing the device registry.
// The listener reacts to registry changes on its next refresh; nothing here
// talks to the devices directly.
type DeviceService interface {
	// Register validates and stores a new device. A zero port defaults to
	// DefaultDevicePort. New devices start enabled.
	Register(ctx context.Context, in RegisterDeviceInput) (*model.Device, error)

	// List returns devices using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DeviceListResult, error)

	// Get returns a single device by its ID.
	Get(ctx context.Context, id string) (*model.Device, error)

	// Enable re-enables a device, clearing any disable reason and failure streak.
	Enable(ctx context.Context, id string) error

	// Disable stops capture for a device and records why.
	Disable(ctx context.Context, id string, reason string) error

	// Delete removes a device and, via the schema, its captured events.
	Delete(ctx context.Context, id string) error
}

type deviceService struct {
	repo repository.DeviceRepository
}

// NewDeviceService constructs a new DeviceService.
func NewDeviceService(repo repository.DeviceRepository) DeviceService {
	return &deviceService{repo: repo}
}

func (s *deviceService) Register(ctx context.Context, in RegisterDeviceInput) (*model.Device, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if in.Host == "" {
		return nil, ErrHostRequired
	}
	if in.Port == 0 {
		in.Port = DefaultDevicePort
	}
	if in.Port < 1 || in.Port > 65535 {
		return nil, ErrInvalidPort
	}

	d := &model.Device{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Host:      in.Host,
		Port:      in.Port,
		CommKey:   in.CommKey,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	return s.repo.Create(ctx, d)
}

// List returns paginated devices without exposing repository types.
func (s *deviceService) List(ctx context.Context, limit, offset int) (*DeviceListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DeviceListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *deviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (s *deviceService) Enable(ctx context.Context, id string) error {
	return s.setEnabled(ctx, id, true, "")
}

func (s *deviceService) Disable(ctx context.Context, id string, reason string) error {
	if reason == "" {
		reason = "disabled by operator"
	}
	return s.setEnabled(ctx, id, false, reason)
}

func (s *deviceService) setEnabled(ctx context.Context, id string, enabled bool, reason string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.repo.SetEnabled(ctx, id, enabled, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes a device. Missing rows are treated as already deleted.
func (s *deviceService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	return s.repo.Delete(ctx, id)
}
