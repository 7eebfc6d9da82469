package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"attstream/docs"
	"attstream/internal/archive"
	"attstream/internal/config"
	"attstream/internal/database"
	"attstream/internal/database/migration"
	"attstream/internal/device"
	"attstream/internal/events"
	handlers "attstream/internal/http/handler"
	"attstream/internal/http/middleware"
	"attstream/internal/listener"
	"attstream/internal/otel"
	"attstream/internal/repository/postgres"
	"attstream/internal/service"
	"attstream/internal/storage"
)

// @title Attendance Stream API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := cfg.Auth.Validate(); err != nil {
		log.Fatal("invalid auth config", zap.Error(err))
	}
	authSecret := cfg.Auth.JWTSecret
	if cfg.Auth.Disabled {
		authSecret = ""
		log.Warn("bearer auth disabled; mutating device endpoints are open")
	}

	ctx := context.Background()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Host); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	deviceRepo := postgres.NewDevicePostgres(db)
	attendanceRepo := postgres.NewAttendancePostgres(db)

	deviceSvc := service.NewDeviceService(deviceRepo)
	attendanceSvc := service.NewAttendanceService(attendanceRepo)

	// The event publisher and archive degrade to noops when not configured;
	// capture never depends on either being reachable.
	publisher := events.NewNoop()
	if cfg.NATS.Enabled {
		publisher, err = events.NewNATS(cfg.NATS)
		if err != nil {
			log.Fatal("failed to connect to nats", zap.Error(err))
		}
	}
	defer publisher.Close()

	archiver := archive.NewNoop()
	if cfg.Archive.Enabled {
		objStore, err := storage.NewMinIO(cfg.Archive)
		if err != nil {
			log.Fatal("failed to initialize object storage", zap.Error(err))
		}
		archiver = archive.NewSink(objStore, log,
			time.Duration(cfg.Archive.FlushIntervalSec)*time.Second)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	listenerMetrics, err := listener.NewMetrics(registry)
	if err != nil {
		log.Fatal("failed to register listener metrics", zap.Error(err))
	}

	mgr := listener.NewManager(listener.Deps{
		Dialer: &device.ZKDialer{
			DialTimeout: time.Duration(cfg.Listener.DialTimeoutSec) * time.Second,
			ReadTimeout: time.Duration(cfg.Listener.ReadTimeoutSec) * time.Second,
		},
		Devices:   deviceRepo,
		Events:    attendanceRepo,
		Publisher: publisher,
		Archive:   archiver,
		Metrics:   listenerMetrics,
		Log:       log,
		Config: listener.Config{
			InitialBackoff: time.Duration(cfg.Listener.InitialBackoffSec) * time.Second,
			MaxBackoff:     time.Duration(cfg.Listener.MaxBackoffSec) * time.Second,
			DisableAfter:   time.Duration(cfg.Listener.DisableAfterHours) * time.Hour,
			RefreshEvery:   time.Duration(cfg.Listener.RefreshIntervalSec) * time.Second,
		},
	})
	if err := mgr.Start(ctx); err != nil {
		log.Fatal("failed to start listener", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatal("failed to register http metrics", zap.Error(err))
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(app, db, deviceSvc, attendanceSvc, mgr, registry,
		middleware.BearerAuth(authSecret))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	mgr.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := archiver.Close(shutdownCtx); err != nil {
		log.Warn("archive close failed", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown failed", zap.Error(err))
	}
}
