package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/chimelab/chime/internal/config"
	"github.com/chimelab/chime/pkg/models"

	"github.com/google/uuid"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Options{
		Logger: slog.New(slog.DiscardHandler),
		Config: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "chime.db"),
		},
	})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})
	return db
}

func testAlarm(t *testing.T, repeat models.RepeatDays) *models.Alarm {
	t.Helper()
	return &models.Alarm{
		ID:         uuid.New().String(),
		Label:      "wake up",
		Time:       time.Date(2024, time.March, 4, 7, 30, 0, 0, time.UTC),
		Enabled:    true,
		RepeatDays: repeat,
	}
}

func TestCreateAndGetAlarm(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	repeat, err := models.NewRepeatDays(models.Monday, models.Friday)
	if err != nil {
		t.Fatal(err)
	}
	alarm := testAlarm(t, repeat)

	if err := db.CreateAlarm(ctx, alarm); err != nil {
		t.Fatalf("CreateAlarm() = %v", err)
	}
	if alarm.CreatedAt.IsZero() || alarm.UpdatedAt.IsZero() {
		t.Error("timestamps not populated on insert")
	}

	got, err := db.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatalf("GetAlarm() = %v", err)
	}
	if got.Label != alarm.Label {
		t.Errorf("label = %q, want %q", got.Label, alarm.Label)
	}
	if !got.Time.Equal(alarm.Time) {
		t.Errorf("time = %v, want %v", got.Time, alarm.Time)
	}
	if !got.Enabled {
		t.Error("enabled flag lost")
	}
	if got.ScheduledHandle != "" {
		t.Errorf("handle = %q, want empty", got.ScheduledHandle)
	}
	if !got.RepeatDays.Contains(time.Monday) || !got.RepeatDays.Contains(time.Friday) {
		t.Errorf("repeat days lost: %v", got.RepeatDays)
	}
	if got.RepeatDays.Contains(time.Tuesday) {
		t.Errorf("repeat days gained a member: %v", got.RepeatDays)
	}
}

func TestGetAlarmNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetAlarm(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAlarm(missing) = %v, want ErrNotFound", err)
	}
}

func TestListAlarms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alarms, err := db.ListAlarms(ctx)
	if err != nil {
		t.Fatalf("ListAlarms() = %v", err)
	}
	if len(alarms) != 0 {
		t.Fatalf("fresh database has %d alarms", len(alarms))
	}

	for i := 0; i < 3; i++ {
		if err := db.CreateAlarm(ctx, testAlarm(t, nil)); err != nil {
			t.Fatal(err)
		}
	}

	alarms, err = db.ListAlarms(ctx)
	if err != nil {
		t.Fatalf("ListAlarms() = %v", err)
	}
	if len(alarms) != 3 {
		t.Errorf("ListAlarms() returned %d alarms, want 3", len(alarms))
	}
}

func TestListEnabledAlarms(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	on := testAlarm(t, nil)
	off := testAlarm(t, nil)
	off.Enabled = false

	if err := db.CreateAlarm(ctx, on); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateAlarm(ctx, off); err != nil {
		t.Fatal(err)
	}

	alarms, err := db.ListEnabledAlarms(ctx)
	if err != nil {
		t.Fatalf("ListEnabledAlarms() = %v", err)
	}
	if len(alarms) != 1 || alarms[0].ID != on.ID {
		t.Errorf("ListEnabledAlarms() = %+v, want only %s", alarms, on.ID)
	}
}

func TestUpdateAlarm(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alarm := testAlarm(t, nil)
	if err := db.CreateAlarm(ctx, alarm); err != nil {
		t.Fatal(err)
	}

	repeat, err := models.NewRepeatDays(models.Saturday, models.Sunday)
	if err != nil {
		t.Fatal(err)
	}
	alarm.Label = "weekend"
	alarm.Time = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	alarm.RepeatDays = repeat

	if err := db.UpdateAlarm(ctx, alarm); err != nil {
		t.Fatalf("UpdateAlarm() = %v", err)
	}

	got, err := db.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "weekend" {
		t.Errorf("label = %q, want %q", got.Label, "weekend")
	}
	if !got.Time.Equal(alarm.Time) {
		t.Errorf("time = %v, want %v", got.Time, alarm.Time)
	}
	if !got.RepeatDays.Contains(time.Saturday) || !got.RepeatDays.Contains(time.Sunday) {
		t.Errorf("repeat days = %v", got.RepeatDays)
	}

	missing := testAlarm(t, nil)
	if err := db.UpdateAlarm(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAlarm(missing) = %v, want ErrNotFound", err)
	}
}

func TestSetAlarmEnabled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alarm := testAlarm(t, nil)
	if err := db.CreateAlarm(ctx, alarm); err != nil {
		t.Fatal(err)
	}

	if err := db.SetAlarmEnabled(ctx, alarm.ID, false); err != nil {
		t.Fatalf("SetAlarmEnabled() = %v", err)
	}
	got, err := db.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("alarm still enabled")
	}

	if err := db.SetAlarmEnabled(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetAlarmEnabled(missing) = %v, want ErrNotFound", err)
	}
}

func TestSetAlarmHandle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alarm := testAlarm(t, nil)
	if err := db.CreateAlarm(ctx, alarm); err != nil {
		t.Fatal(err)
	}

	if err := db.SetAlarmHandle(ctx, alarm.ID, "tok-1"); err != nil {
		t.Fatalf("SetAlarmHandle() = %v", err)
	}
	got, err := db.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduledHandle != "tok-1" {
		t.Errorf("handle = %q, want %q", got.ScheduledHandle, "tok-1")
	}

	// Clearing stores NULL, read back as empty.
	if err := db.SetAlarmHandle(ctx, alarm.ID, ""); err != nil {
		t.Fatalf("SetAlarmHandle(clear) = %v", err)
	}
	got, err = db.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ScheduledHandle != "" {
		t.Errorf("handle = %q after clear, want empty", got.ScheduledHandle)
	}
}

func TestDeleteAlarm(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alarm := testAlarm(t, nil)
	if err := db.CreateAlarm(ctx, alarm); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteAlarm(ctx, alarm.ID); err != nil {
		t.Fatalf("DeleteAlarm() = %v", err)
	}
	if _, err := db.GetAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAlarm(deleted) = %v, want ErrNotFound", err)
	}
	if err := db.DeleteAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAlarm(deleted) = %v, want ErrNotFound", err)
	}
}
