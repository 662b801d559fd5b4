package core

import (
	"testing"
	"time"

	"github.com/chimelab/chime/pkg/models"
)

// mustDays builds a repeat set or fails the test.
func mustDays(t *testing.T, days ...models.Weekday) models.RepeatDays {
	t.Helper()
	set, err := models.NewRepeatDays(days...)
	if err != nil {
		t.Fatalf("NewRepeatDays(%v) = %v", days, err)
	}
	return set
}

// at builds a local instant on a fixed reference week.
// 2024-01-01 is a Monday.
func at(t *testing.T, day int, hour, min int) time.Time {
	t.Helper()
	return time.Date(2024, time.January, day, hour, min, 0, 0, time.Local)
}

func TestNextOccurrenceOneTime(t *testing.T) {
	sevenAM := at(t, 1, 7, 0)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before time of day stays today",
			now:  at(t, 1, 6, 0),
			want: at(t, 1, 7, 0),
		},
		{
			name: "after time of day moves to tomorrow",
			now:  at(t, 1, 8, 0),
			want: at(t, 2, 7, 0),
		},
		{
			name: "exactly at time of day counts as passed",
			now:  at(t, 1, 7, 0),
			want: at(t, 2, 7, 0),
		},
		{
			name: "one second before stays today",
			now:  at(t, 1, 7, 0).Add(-time.Second),
			want: at(t, 1, 7, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(sevenAM, nil, tt.now, MinOccurrenceScanDays)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextOccurrenceRepeating(t *testing.T) {
	sevenAM := at(t, 1, 7, 0)

	tests := []struct {
		name   string
		repeat models.RepeatDays
		now    time.Time
		want   time.Time
	}{
		{
			name:   "tuesday morning jumps to wednesday",
			repeat: mustDays(t, models.Monday, models.Wednesday),
			// Tuesday 10:00.
			now:  at(t, 2, 10, 0),
			want: at(t, 3, 7, 0),
		},
		{
			name:   "matching day before time of day stays on it",
			repeat: mustDays(t, models.Monday),
			// Monday 06:00.
			now:  at(t, 1, 6, 0),
			want: at(t, 1, 7, 0),
		},
		{
			name:   "matching day after time of day wraps a full week",
			repeat: mustDays(t, models.Monday),
			// Monday 08:00.
			now:  at(t, 1, 8, 0),
			want: at(t, 8, 7, 0),
		},
		{
			name:   "sunday wraps into next week",
			repeat: mustDays(t, models.Tuesday),
			// Sunday 12:00 (Jan 7).
			now:  at(t, 7, 12, 0),
			want: at(t, 9, 7, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(sevenAM, tt.repeat, tt.now, MinOccurrenceScanDays)
			if !got.Equal(tt.want) {
				t.Errorf("NextOccurrence() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestNextOccurrenceMinimality checks that for every weekday set and every
// starting weekday, the result is in the future, its weekday is a member,
// and no earlier member instant exists.
func TestNextOccurrenceMinimality(t *testing.T) {
	sevenAM := at(t, 1, 7, 0)
	allDays := []models.Weekday{
		models.Monday, models.Tuesday, models.Wednesday, models.Thursday,
		models.Friday, models.Saturday, models.Sunday,
	}

	for i := range allDays {
		repeat := mustDays(t, allDays[i], allDays[(i+3)%7])
		for day := 1; day <= 7; day++ {
			now := at(t, day, 9, 30)
			got := NextOccurrence(sevenAM, repeat, now, MinOccurrenceScanDays)

			if !got.After(now) {
				t.Fatalf("NextOccurrence(%v, now=%v) = %v, not in the future", repeat, now, got)
			}
			if !repeat.Contains(got.Weekday()) {
				t.Fatalf("NextOccurrence(%v, now=%v) = %v, weekday %v not in set", repeat, now, got, got.Weekday())
			}
			// No earlier instant at 07:00 satisfies membership.
			for earlier := got.AddDate(0, 0, -1); earlier.After(now); earlier = earlier.AddDate(0, 0, -1) {
				if repeat.Contains(earlier.Weekday()) {
					t.Fatalf("NextOccurrence(%v, now=%v) = %v, but %v is earlier and matches", repeat, now, got, earlier)
				}
			}
		}
	}
}

func TestNextOccurrencePreservesMinutes(t *testing.T) {
	halfPast := at(t, 1, 22, 45)
	got := NextOccurrence(halfPast, nil, at(t, 1, 23, 0), MinOccurrenceScanDays)
	want := at(t, 2, 22, 45)
	if !got.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", got, want)
	}
}

// TestNextOccurrenceScanDays checks that the scan horizon only widens the
// fallback boundary: a wider horizon keeps the same result, and a value
// below a week is raised so the scan still covers every weekday.
func TestNextOccurrenceScanDays(t *testing.T) {
	sevenAM := at(t, 1, 7, 0)
	repeat := mustDays(t, models.Sunday)
	// Monday 10:00, next Sunday is Jan 7.
	now := at(t, 1, 10, 0)
	want := at(t, 7, 7, 0)

	for _, scanDays := range []int{3, 7, 14} {
		got := NextOccurrence(sevenAM, repeat, now, scanDays)
		if !got.Equal(want) {
			t.Errorf("NextOccurrence(scanDays=%d) = %v, want %v", scanDays, got, want)
		}
	}
}
