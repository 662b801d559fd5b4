package core

import (
	"time"

	"github.com/chimelab/chime/pkg/models"
)

// MinOccurrenceScanDays is the smallest usable scan horizon. A non-empty
// repeat set always matches within a week.
const MinOccurrenceScanDays = 7

// NextOccurrence computes the next future instant an alarm rings at.
//
// timeOfDay contributes only its hour and minute; the calendar is anchored
// at now. An occurrence equal to now counts as already passed. For a
// one-time alarm (empty repeat set) the result is today's instance of the
// time-of-day, or tomorrow's if that has passed. For a repeating alarm the
// scan advances day by day, at most scanDays steps (raised to a full week
// when smaller), until the candidate's weekday is a member of the set.
//
// The function is total: if the scan exhausts without a match (which a
// non-empty set cannot produce), it falls back to tomorrow at timeOfDay.
// Callers treat that fallback as an invariant violation to log, never an
// error to surface.
func NextOccurrence(timeOfDay time.Time, repeat models.RepeatDays, now time.Time, scanDays int) time.Time {
	if scanDays < MinOccurrenceScanDays {
		scanDays = MinOccurrenceScanDays
	}
	candidate := time.Date(
		now.Year(), now.Month(), now.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), 0, 0,
		now.Location(),
	)

	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	if repeat.IsEmpty() {
		return candidate
	}

	for i := 0; i < scanDays; i++ {
		if repeat.Contains(candidate.Weekday()) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}

	// Unreachable for well-formed sets. Fall back rather than fail.
	fallback := time.Date(
		now.Year(), now.Month(), now.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), 0, 0,
		now.Location(),
	)
	return fallback.AddDate(0, 0, 1)
}
