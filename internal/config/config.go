package config

import (
	"errors"
	"os"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// NATSConfig holds settings for the attendance event publisher.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// ArchiveConfig holds object storage settings for the raw event archive.
type ArchiveConfig struct {
	Enabled          bool
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Bucket           string
	UseSSL           bool
	FlushIntervalSec int
}

// ListenerConfig holds tuning knobs for the device listener.
//
// InitialBackoffSec/MaxBackoffSec bound the reconnect delay for a failing
// device. DisableAfterHours is the continuous-failure window after which a
// device is automatically disabled. RefreshIntervalSec controls how often
// the device registry is re-read so API-side enable/disable takes effect.
type ListenerConfig struct {
	DialTimeoutSec     int
	ReadTimeoutSec     int
	InitialBackoffSec  int
	MaxBackoffSec      int
	DisableAfterHours  int
	RefreshIntervalSec int
}

// AuthConfig holds the HS256 secret used to verify bearer tokens on
// mutating device endpoints. A missing secret aborts startup unless
// Disabled is set explicitly.
type AuthConfig struct {
	JWTSecret string
	Disabled  bool
}

// Validate rejects a configuration that would leave the mutating endpoints
// open by accident. Running without a secret requires AUTH_DISABLED=true.
func (c AuthConfig) Validate() error {
	if !c.Disabled && c.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is not set; set it or opt out with AUTH_DISABLED=true")
	}
	return nil
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	NATS     NATSConfig
	Archive  ArchiveConfig
	Listener ListenerConfig
	Auth     AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"), // default only for non-sensitive value
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		NATS: NATSConfig{
			Enabled:       getEnvBool("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "attendance.events"),
		},
		Archive: ArchiveConfig{
			Enabled:          getEnvBool("ARCHIVE_ENABLED", false),
			Endpoint:         getEnv("ARCHIVE_ENDPOINT", ""),
			AccessKey:        getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey:        getEnv("ARCHIVE_SECRET_KEY", ""),
			Bucket:           getEnv("ARCHIVE_BUCKET", ""),
			UseSSL:           getEnvBool("ARCHIVE_USE_SSL", false),
			FlushIntervalSec: getEnvInt("ARCHIVE_FLUSH_INTERVAL_SEC", 60),
		},
		Listener: ListenerConfig{
			DialTimeoutSec:     getEnvInt("LISTENER_DIAL_TIMEOUT_SEC", 10),
			ReadTimeoutSec:     getEnvInt("LISTENER_READ_TIMEOUT_SEC", 90),
			InitialBackoffSec:  getEnvInt("LISTENER_INITIAL_BACKOFF_SEC", 1),
			MaxBackoffSec:      getEnvInt("LISTENER_MAX_BACKOFF_SEC", 300),
			DisableAfterHours:  getEnvInt("LISTENER_DISABLE_AFTER_HOURS", 24),
			RefreshIntervalSec: getEnvInt("LISTENER_REFRESH_INTERVAL_SEC", 30),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Disabled:  getEnvBool("AUTH_DISABLED", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
