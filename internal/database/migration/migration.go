package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_devices",
		SQL: `CREATE TABLE IF NOT EXISTS devices (
  id              UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  name            TEXT        NOT NULL,
  host            TEXT        NOT NULL,
  port            INTEGER     NOT NULL CHECK (port > 0 AND port <= 65535),
  comm_key        INTEGER     NOT NULL DEFAULT 0,
  enabled         BOOLEAN     NOT NULL DEFAULT TRUE,
  disabled_reason TEXT        NOT NULL DEFAULT '',
  failing_since   TIMESTAMPTZ NULL,
  last_seen_at    TIMESTAMPTZ NULL,
  created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (host, port)
);`,
	},
	{
		Name: "create_table_attendance_events",
		SQL: `CREATE TABLE IF NOT EXISTS attendance_events (
  id            UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  device_id     UUID        NOT NULL REFERENCES devices (id) ON DELETE CASCADE,
  employee_code TEXT        NOT NULL,
  recorded_at   TIMESTAMPTZ NOT NULL,
  verify_mode   SMALLINT    NOT NULL DEFAULT 0,
  punch         SMALLINT    NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (device_id, employee_code, recorded_at)
);`,
	},
	{
		Name: "create_index_attendance_events_recorded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_attendance_events_recorded_at ON attendance_events (recorded_at);`,
	},
	{
		Name: "create_index_attendance_events_employee_code",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_attendance_events_employee_code ON attendance_events (employee_code);`,
	},
	{
		Name: "create_index_devices_enabled",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_devices_enabled ON devices (enabled);`,
	},
}

// EnsureMigrated checks if the 'devices' table exists and runs migrations if it doesn't.
// The uniqueness constraint on attendance_events is what makes event ingestion
// idempotent; everything else is conventional schema.
func EnsureMigrated(ctx context.Context, db *sql.DB, dbHost string) error {
	start := time.Now()

	logJSON(map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.devices') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(data map[string]any) {
	data["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
