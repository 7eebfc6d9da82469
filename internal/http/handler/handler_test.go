package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attstream/internal/http/middleware"
	"attstream/internal/model"
	"attstream/internal/service"
	serviceMocks "attstream/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct {
	status   model.ListenerStatus
	byDevice map[string]model.DeviceStatus
}

func (f *fakeReporter) Status() model.ListenerStatus { return f.status }

func (f *fakeReporter) StatusFor(id string) (model.DeviceStatus, bool) {
	st, ok := f.byDevice[id]
	return st, ok
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterDevice(t *testing.T) {
	mockSvc := new(serviceMocks.MockDeviceService)
	app := fiber.New()
	app.Post("/devices", RegisterDevice(mockSvc))

	post := func(body any) *http.Request {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/devices", bytes.NewReader(raw))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		return req
	}

	t.Run("success", func(t *testing.T) {
		in := service.RegisterDeviceInput{Name: "lobby", Host: "10.0.0.5", Port: 4370}
		expected := &model.Device{ID: uuid.New().String(), Name: "lobby"}
		mockSvc.On("Register", mock.Anything, in).Return(expected, nil).Once()

		resp, _ := app.Test(post(in))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result model.Device
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expected.ID, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("validation error", func(t *testing.T) {
		in := service.RegisterDeviceInput{Host: "10.0.0.5"}
		mockSvc.On("Register", mock.Anything, in).Return(nil, service.ErrNameRequired).Once()

		resp, _ := app.Test(post(in))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		in := service.RegisterDeviceInput{Name: "lobby", Host: "10.0.0.5"}
		mockSvc.On("Register", mock.Anything, in).Return(nil, errors.New("db down")).Once()

		resp, _ := app.Test(post(in))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListDevices(t *testing.T) {
	mockSvc := new(serviceMocks.MockDeviceService)
	app := fiber.New()
	app.Get("/devices", ListDevices(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &service.DeviceListResult{
			Items: []model.Device{{ID: uuid.New().String(), Name: "lobby"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, 10, 0).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/devices?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.DeviceListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/devices?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})
}

func TestGetDevice(t *testing.T) {
	mockSvc := new(serviceMocks.MockDeviceService)
	app := fiber.New()
	app.Get("/devices/:id", GetDevice(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expected := &model.Device{ID: id, Name: "lobby"}
		mockSvc.On("Get", mock.Anything, id).Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/devices/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.Device
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("comm key is never returned", func(t *testing.T) {
		id := uuid.New().String()
		dev := &model.Device{ID: id, Name: "lobby", CommKey: 4242}
		mockSvc.On("Get", mock.Anything, id).Return(dev, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/devices/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var raw map[string]any
		json.NewDecoder(resp.Body).Decode(&raw)
		assert.NotContains(t, raw, "comm_key")
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, id).Return(nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/devices/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/devices/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})
}

func TestEnableDisableDevice(t *testing.T) {
	mockSvc := new(serviceMocks.MockDeviceService)
	app := fiber.New()
	app.Post("/devices/:id/enable", EnableDevice(mockSvc))
	app.Post("/devices/:id/disable", DisableDevice(mockSvc))

	t.Run("enable", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Enable", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/devices/"+id+"/enable", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("disable with reason", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Disable", mock.Anything, id, "maintenance").Return(nil).Once()

		raw, _ := json.Marshal(map[string]string{"reason": "maintenance"})
		req := httptest.NewRequest(http.MethodPost, "/devices/"+id+"/disable", bytes.NewReader(raw))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("enable unknown device", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Enable", mock.Anything, id).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodPost, "/devices/"+id+"/enable", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDevice(t *testing.T) {
	mockSvc := new(serviceMocks.MockDeviceService)
	app := fiber.New()
	app.Delete("/devices/:id", DeleteDevice(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/devices/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/devices/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListAttendance(t *testing.T) {
	mockSvc := new(serviceMocks.MockAttendanceService)
	app := fiber.New()
	app.Get("/attendance", ListAttendance(mockSvc))

	t.Run("success with filters", func(t *testing.T) {
		from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		mockSvc.On("List", mock.Anything, mock.MatchedBy(func(q service.AttendanceQuery) bool {
			return q.DeviceID == "d1" && q.From != nil && q.From.Equal(from) && q.Limit == 25
		})).Return(&service.AttendanceListResult{
			Items: []model.AttendanceEvent{{EmployeeCode: "1042"}},
			Total: 1,
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet,
			"/attendance?device_id=d1&from=2024-03-01T00:00:00Z&limit=25", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.AttendanceListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid from", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/attendance?from=yesterday", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_FROM", res.Error.Code)
	})

	t.Run("inverted range", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, mock.Anything).
			Return(nil, service.ErrInvalidRange).Once()

		req := httptest.NewRequest(http.MethodGet,
			"/attendance?from=2024-03-02T00:00:00Z&to=2024-03-01T00:00:00Z", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestStatusEndpoints(t *testing.T) {
	id := uuid.New().String()
	rep := &fakeReporter{
		status: model.ListenerStatus{
			Running: true,
			Devices: []model.DeviceStatus{{DeviceID: id, Connected: true}},
		},
		byDevice: map[string]model.DeviceStatus{
			id: {DeviceID: id, Connected: true, EventsIngested: 3},
		},
	}

	app := fiber.New()
	app.Get("/listener/status", ListenerStatus(rep))
	app.Get("/devices/:id/status", DeviceStatus(rep))

	t.Run("listener status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/listener/status", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.ListenerStatus
		json.NewDecoder(resp.Body).Decode(&result)
		assert.True(t, result.Running)
		assert.Len(t, result.Devices, 1)
	})

	t.Run("device status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/devices/"+id+"/status", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result model.DeviceStatus
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, int64(3), result.EventsIngested)
	})

	t.Run("unsupervised device", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/devices/"+uuid.New().String()+"/status", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	devSvc := new(serviceMocks.MockDeviceService)
	attSvc := new(serviceMocks.MockAttendanceService)
	rep := &fakeReporter{}
	RegisterRoutes(app, nil, devSvc, attSvc, rep, prometheus.NewRegistry(),
		middleware.BearerAuth(""))

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "NOT_FOUND", res.Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "METHOD_NOT_ALLOWED", res.Error.Code)
	})
}
