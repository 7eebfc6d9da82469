package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"attstream/internal/model"
	"attstream/internal/repository"
)

const attendanceColumns = `id, device_id, employee_code, recorded_at, verify_mode, punch, created_at`

// AttendancePostgres is a PostgreSQL implementation of repository.AttendanceRepository.
type AttendancePostgres struct {
	db *sql.DB
}

// NewAttendancePostgres creates a new AttendancePostgres repository.
func NewAttendancePostgres(db *sql.DB) *AttendancePostgres {
	return &AttendancePostgres{db: db}
}

var _ repository.AttendanceRepository = (*AttendancePostgres)(nil)

// Insert writes an event row. Duplicates (same device, employee and
// timestamp) are silently skipped via ON CONFLICT DO NOTHING; the returned
// bool reports whether a row was actually inserted.
func (r *AttendancePostgres) Insert(ctx context.Context, ev *model.AttendanceEvent) (bool, error) {
	const q = `
		INSERT INTO attendance_events (id, device_id, employee_code, recorded_at, verify_mode, punch, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (device_id, employee_code, recorded_at) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q,
		ev.ID,
		ev.DeviceID,
		ev.EmployeeCode,
		ev.RecordedAt,
		ev.VerifyMode,
		ev.Punch,
		ev.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns events newest-first with a total count for the same filter.
// The WHERE clause is built from the non-nil filter fields.
func (r *AttendancePostgres) List(ctx context.Context, f repository.AttendanceFilter) (*repository.PageResult[model.AttendanceEvent], error) {
	where, args := buildAttendanceWhere(f)

	qCount := `SELECT COUNT(*) FROM attendance_events` + where
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := fmt.Sprintf(
		`SELECT %s FROM attendance_events%s ORDER BY recorded_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		attendanceColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, f.Page.Limit, f.Page.Offset)

	rows, err := r.db.QueryContext(ctx, qList, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.AttendanceEvent, 0)
	for rows.Next() {
		var ev model.AttendanceEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.DeviceID,
			&ev.EmployeeCode,
			&ev.RecordedAt,
			&ev.VerifyMode,
			&ev.Punch,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.AttendanceEvent]{
		Items: items,
		Total: total,
	}, nil
}

func buildAttendanceWhere(f repository.AttendanceFilter) (string, []any) {
	var conds []string
	var args []any

	if f.DeviceID != nil {
		args = append(args, *f.DeviceID)
		conds = append(conds, fmt.Sprintf("device_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("recorded_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("recorded_at <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
