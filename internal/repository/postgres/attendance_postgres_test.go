package postgres

import (
	"context"
	"testing"
	"time"

	"attstream/internal/model"
	"attstream/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var attendanceCols = []string{"id", "device_id", "employee_code", "recorded_at", "verify_mode", "punch", "created_at"}

func TestAttendancePostgres_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAttendancePostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	ev := &model.AttendanceEvent{
		ID:           "ev-uuid",
		DeviceID:     "dev-uuid",
		EmployeeCode: "1042",
		RecordedAt:   now,
		VerifyMode:   1,
		Punch:        model.PunchIn,
		CreatedAt:    now,
	}

	t.Run("inserted", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO attendance_events").
			WithArgs(ev.ID, ev.DeviceID, ev.EmployeeCode, ev.RecordedAt, ev.VerifyMode, ev.Punch, ev.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		inserted, err := repo.Insert(ctx, ev)

		assert.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("duplicate is skipped", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO attendance_events").
			WithArgs(ev.ID, ev.DeviceID, ev.EmployeeCode, ev.RecordedAt, ev.VerifyMode, ev.Punch, ev.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := repo.Insert(ctx, ev)

		assert.NoError(t, err)
		assert.False(t, inserted)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendancePostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewAttendancePostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("unfiltered", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM attendance_events").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		rows := sqlmock.NewRows(attendanceCols).
			AddRow("ev-id", "dev-id", "1042", now, 1, 0, now)

		mock.ExpectQuery("SELECT (.+) FROM attendance_events ORDER BY").
			WithArgs(10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.AttendanceFilter{Page: repository.PageQuery{Limit: 10, Offset: 0}})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
		assert.Equal(t, "1042", res.Items[0].EmployeeCode)
	})

	t.Run("filtered by device and range", func(t *testing.T) {
		deviceID := "dev-id"
		from := now.Add(-time.Hour)
		to := now

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM attendance_events WHERE device_id = (.+) AND recorded_at >= (.+) AND recorded_at <=").
			WithArgs(deviceID, from, to).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		mock.ExpectQuery("SELECT (.+) FROM attendance_events WHERE device_id = (.+) ORDER BY").
			WithArgs(deviceID, from, to, 10, 0).
			WillReturnRows(sqlmock.NewRows(attendanceCols))

		res, err := repo.List(ctx, repository.AttendanceFilter{
			DeviceID: &deviceID,
			From:     &from,
			To:       &to,
			Page:     repository.PageQuery{Limit: 10, Offset: 0},
		})

		assert.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.Empty(t, res.Items)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAttendanceWhere(t *testing.T) {
	deviceID := "dev-id"
	from := time.Now()

	where, args := buildAttendanceWhere(repository.AttendanceFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildAttendanceWhere(repository.AttendanceFilter{DeviceID: &deviceID, From: &from})
	assert.Equal(t, " WHERE device_id = $1 AND recorded_at >= $2", where)
	assert.Len(t, args, 2)
}
