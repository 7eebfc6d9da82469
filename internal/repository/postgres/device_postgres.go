package postgres

import (
	"context"
	"database/sql"
	"time"

	"attstream/internal/model"
	"attstream/internal/repository"
)

const deviceColumns = `id, name, host, port, comm_key, enabled, disabled_reason, failing_since, last_seen_at, created_at, updated_at`

// DevicePostgres is a PostgreSQL implementation of repository.DeviceRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DevicePostgres struct {
	db *sql.DB
}

// NewDevicePostgres creates a new DevicePostgres repository.
func NewDevicePostgres(db *sql.DB) *DevicePostgres {
	return &DevicePostgres{db: db}
}

var _ repository.DeviceRepository = (*DevicePostgres)(nil)

func scanDevice(row interface{ Scan(...any) error }) (*model.Device, error) {
	var d model.Device
	var failingSince, lastSeenAt sql.NullTime
	if err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Host,
		&d.Port,
		&d.CommKey,
		&d.Enabled,
		&d.DisabledReason,
		&failingSince,
		&lastSeenAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if failingSince.Valid {
		t := failingSince.Time
		d.FailingSince = &t
	}
	if lastSeenAt.Valid {
		t := lastSeenAt.Time
		d.LastSeenAt = &t
	}
	return &d, nil
}

// Create inserts a new device row and returns the stored record.
func (r *DevicePostgres) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	const q = `
		INSERT INTO devices (id, name, host, port, comm_key, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + deviceColumns
	row := r.db.QueryRowContext(ctx, q,
		d.ID,
		d.Name,
		d.Host,
		d.Port,
		d.CommKey,
		d.Enabled,
		d.CreatedAt,
	)
	return scanDevice(row)
}

// FindByID fetches a single device by its ID.
func (r *DevicePostgres) FindByID(ctx context.Context, id string) (*model.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return scanDevice(r.db.QueryRowContext(ctx, q, id))
}

// List returns devices using LIMIT/OFFSET pagination and a total count.
func (r *DevicePostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Device], error) {
	const qCount = `SELECT COUNT(*) FROM devices`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + deviceColumns + `
		FROM devices
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Device]{
		Items: items,
		Total: total,
	}, nil
}

// ListEnabled returns every device with enabled = TRUE.
func (r *DevicePostgres) ListEnabled(ctx context.Context) ([]model.Device, error) {
	const q = `SELECT ` + deviceColumns + ` FROM devices WHERE enabled = TRUE ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Device, 0)
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SetEnabled updates the enabled flag. Disabling keeps the reason for the
// status API; enabling wipes both the reason and the failure stamp so the
// runner starts with a clean streak.
func (r *DevicePostgres) SetEnabled(ctx context.Context, id string, enabled bool, reason string) error {
	const q = `
		UPDATE devices
		SET enabled = $2,
		    disabled_reason = $3,
		    failing_since = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, q, id, enabled, reason)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFailing stamps the start of a failure streak; a streak already in
// progress keeps its original stamp.
func (r *DevicePostgres) MarkFailing(ctx context.Context, id string, since time.Time) error {
	const q = `
		UPDATE devices
		SET failing_since = COALESCE(failing_since, $2),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, since)
	return err
}

// ClearFailing ends a failure streak and records the device as seen.
func (r *DevicePostgres) ClearFailing(ctx context.Context, id string, seenAt time.Time) error {
	const q = `
		UPDATE devices
		SET failing_since = NULL,
		    last_seen_at = $2,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, q, id, seenAt)
	return err
}

// Delete removes a device by ID. It does not return an error if the row does not exist.
func (r *DevicePostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM devices WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
