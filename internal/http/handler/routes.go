package handler

import (
	"database/sql"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attstream/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers
// stay thin; business rules live in the service layer. auth guards the
// mutating device routes only, so probes and scrapes keep working without a
// token.
func RegisterRoutes(
	app *fiber.App,
	db *sql.DB,
	devSvc service.DeviceService,
	attSvc service.AttendanceService,
	reporter StatusReporter,
	gatherer prometheus.Gatherer,
	auth fiber.Handler,
) {
	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	))

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/devices", auth, RegisterDevice(devSvc))
	app.Get("/devices", ListDevices(devSvc))
	app.Get("/devices/:id", GetDevice(devSvc))
	app.Delete("/devices/:id", auth, DeleteDevice(devSvc))
	app.Post("/devices/:id/enable", auth, EnableDevice(devSvc))
	app.Post("/devices/:id/disable", auth, DisableDevice(devSvc))
	app.Get("/devices/:id/status", DeviceStatus(reporter))

	app.Get("/listener/status", ListenerStatus(reporter))

	app.Get("/attendance", ListAttendance(attSvc))
}
