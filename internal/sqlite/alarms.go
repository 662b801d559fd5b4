package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chimelab/chime/pkg/models"
)

const (
	insertAlarmQuery = `INSERT INTO alarms (
    id,
    label,
    time_ms,
    enabled,
    repeat_days,
    scheduled_handle
) VALUES (?, ?, ?, ?, ?, ?)
RETURNING created_at, updated_at`

	selectAlarmBase = `SELECT
    id,
    label,
    time_ms,
    enabled,
    repeat_days,
    scheduled_handle,
    created_at,
    updated_at
FROM alarms`

	updateAlarmQuery = `UPDATE alarms
SET label = ?,
    time_ms = ?,
    enabled = ?,
    repeat_days = ?,
    scheduled_handle = ?,
    updated_at = datetime('now')
WHERE id = ?`

	setAlarmEnabledQuery = `UPDATE alarms
SET enabled = ?,
    updated_at = datetime('now')
WHERE id = ?`

	setAlarmHandleQuery = `UPDATE alarms
SET scheduled_handle = ?,
    updated_at = datetime('now')
WHERE id = ?`

	deleteAlarmQuery = `DELETE FROM alarms WHERE id = ?`
)

// CreateAlarm inserts a new alarm record.
func (db *DB) CreateAlarm(ctx context.Context, alarm *models.Alarm) error {
	if alarm == nil {
		return fmt.Errorf("alarm payload is required")
	}

	repeatJSON, err := json.Marshal(alarm.RepeatDays)
	if err != nil {
		return fmt.Errorf("failed to marshal repeat days: %w", err)
	}

	row := db.writeDB.QueryRowContext(ctx, insertAlarmQuery,
		alarm.ID,
		alarm.Label,
		alarm.Time.UnixMilli(),
		boolToInt(alarm.Enabled),
		string(repeatJSON),
		nullableString(alarm.ScheduledHandle),
	)

	var createdAt, updatedAt time.Time
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}

	alarm.CreatedAt = createdAt
	alarm.UpdatedAt = updatedAt
	return nil
}

// GetAlarm retrieves an alarm by its identifier.
func (db *DB) GetAlarm(ctx context.Context, alarmID string) (*models.Alarm, error) {
	query := selectAlarmBase + " WHERE id = ?"
	row := db.readDB.QueryRowContext(ctx, query, alarmID)
	return scanAlarm(row)
}

// ListAlarms fetches all alarm records, newest first.
func (db *DB) ListAlarms(ctx context.Context) ([]*models.Alarm, error) {
	query := selectAlarmBase + " ORDER BY created_at DESC, id DESC"
	rows, err := db.readDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	defer rows.Close()

	var alarms []*models.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alarms: %w", err)
	}
	return alarms, nil
}

// ListEnabledAlarms fetches all alarms with enabled = true. Used on
// startup to re-arm schedules.
func (db *DB) ListEnabledAlarms(ctx context.Context) ([]*models.Alarm, error) {
	query := selectAlarmBase + " WHERE enabled = 1 ORDER BY created_at DESC, id DESC"
	rows, err := db.readDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled alarms: %w", err)
	}
	defer rows.Close()

	var alarms []*models.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		alarms = append(alarms, alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enabled alarms: %w", err)
	}
	return alarms, nil
}

// UpdateAlarm persists changes to an existing alarm record.
func (db *DB) UpdateAlarm(ctx context.Context, alarm *models.Alarm) error {
	if alarm == nil {
		return fmt.Errorf("alarm payload is required")
	}

	repeatJSON, err := json.Marshal(alarm.RepeatDays)
	if err != nil {
		return fmt.Errorf("failed to marshal repeat days: %w", err)
	}

	res, err := db.writeDB.ExecContext(ctx, updateAlarmQuery,
		alarm.Label,
		alarm.Time.UnixMilli(),
		boolToInt(alarm.Enabled),
		string(repeatJSON),
		nullableString(alarm.ScheduledHandle),
		alarm.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alarm: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAlarmEnabled flips the enabled flag without touching other fields.
func (db *DB) SetAlarmEnabled(ctx context.Context, alarmID string, enabled bool) error {
	res, err := db.writeDB.ExecContext(ctx, setAlarmEnabledQuery, boolToInt(enabled), alarmID)
	if err != nil {
		return fmt.Errorf("failed to set alarm enabled: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAlarmHandle records the timer handle currently armed for the alarm.
// An empty handle clears the column.
func (db *DB) SetAlarmHandle(ctx context.Context, alarmID, handle string) error {
	res, err := db.writeDB.ExecContext(ctx, setAlarmHandleQuery, nullableString(handle), alarmID)
	if err != nil {
		return fmt.Errorf("failed to set alarm handle: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAlarm removes an alarm record.
func (db *DB) DeleteAlarm(ctx context.Context, alarmID string) error {
	res, err := db.writeDB.ExecContext(ctx, deleteAlarmQuery, alarmID)
	if err != nil {
		return fmt.Errorf("failed to delete alarm: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for scanAlarm.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (*models.Alarm, error) {
	var (
		alarm      models.Alarm
		timeMs     int64
		enabled    int
		repeatJSON string
		handle     sql.NullString
	)

	err := row.Scan(
		&alarm.ID,
		&alarm.Label,
		&timeMs,
		&enabled,
		&repeatJSON,
		&handle,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan alarm: %w", err)
	}

	alarm.Time = time.UnixMilli(timeMs)
	alarm.Enabled = enabled != 0
	if handle.Valid {
		alarm.ScheduledHandle = handle.String
	}
	if err := json.Unmarshal([]byte(repeatJSON), &alarm.RepeatDays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repeat days: %w", err)
	}
	return &alarm, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
