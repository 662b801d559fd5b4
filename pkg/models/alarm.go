package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Weekday is a lowercase day token used in repeat-day sets.
type Weekday string

const (
	Monday    Weekday = "mon"
	Tuesday   Weekday = "tue"
	Wednesday Weekday = "wed"
	Thursday  Weekday = "thu"
	Friday    Weekday = "fri"
	Saturday  Weekday = "sat"
	Sunday    Weekday = "sun"
)

var weekdayTokens = map[Weekday]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// FromTime maps a time.Weekday onto its day token.
func FromTime(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Time returns the time.Weekday for a day token.
func (w Weekday) Time() (time.Weekday, bool) {
	d, ok := weekdayTokens[w]
	return d, ok
}

// Valid reports whether w is one of the seven day tokens.
func (w Weekday) Valid() bool {
	_, ok := weekdayTokens[w]
	return ok
}

// RepeatDays is the set of weekdays an alarm recurs on. Empty means the
// alarm is one-time. Only membership is significant; serialization is a
// JSON array of day tokens with a stable Monday-first order.
type RepeatDays map[Weekday]struct{}

// NewRepeatDays builds a set from day tokens, rejecting unknown tokens.
func NewRepeatDays(days ...Weekday) (RepeatDays, error) {
	set := make(RepeatDays, len(days))
	for _, d := range days {
		if !d.Valid() {
			return nil, fmt.Errorf("unknown weekday token %q", d)
		}
		set[d] = struct{}{}
	}
	return set, nil
}

// Contains reports whether the set includes the given calendar weekday.
func (r RepeatDays) Contains(d time.Weekday) bool {
	_, ok := r[FromTime(d)]
	return ok
}

// IsEmpty reports whether the alarm is one-time.
func (r RepeatDays) IsEmpty() bool {
	return len(r) == 0
}

// Tokens returns the member day tokens in Monday-first order.
func (r RepeatDays) Tokens() []Weekday {
	ordered := []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
	out := make([]Weekday, 0, len(r))
	for _, d := range ordered {
		if _, ok := r[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

// String renders the set for logs, e.g. "mon,wed,fri".
func (r RepeatDays) String() string {
	tokens := r.Tokens()
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// MarshalJSON serializes the set as a JSON array of day tokens.
func (r RepeatDays) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Tokens())
}

// UnmarshalJSON accepts a JSON array of day tokens; null becomes the empty
// set.
func (r *RepeatDays) UnmarshalJSON(data []byte) error {
	var tokens []Weekday
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	set, err := NewRepeatDays(tokens...)
	if err != nil {
		return err
	}
	*r = set
	return nil
}

// Alarm is the durable alarm record. Time carries the wall-clock
// time-of-day the alarm rings at; its date component only matters for
// one-time alarms, where it anchors the already-passed-today check.
type Alarm struct {
	ID              string     `json:"id"`
	Label           string     `json:"label"`
	Time            time.Time  `json:"time"`
	Enabled         bool       `json:"enabled"`
	RepeatDays      RepeatDays `json:"repeat_days"`
	ScheduledHandle string     `json:"scheduled_handle,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsRepeating reports whether the alarm recurs on at least one weekday.
func (a *Alarm) IsRepeating() bool {
	return !a.RepeatDays.IsEmpty()
}

// DisplayLabel returns the label with the default applied for empty input.
func (a *Alarm) DisplayLabel() string {
	if strings.TrimSpace(a.Label) == "" {
		return "Alarm"
	}
	return a.Label
}

// CreateAlarmRequest defines the payload for creating a new alarm. New
// alarms start enabled; the coordinator arms the first occurrence.
type CreateAlarmRequest struct {
	Label      string     `json:"label"`
	Time       time.Time  `json:"time"`
	RepeatDays RepeatDays `json:"repeat_days"`
}

// UpdateAlarmRequest defines the payload for editing an alarm. All fields
// are applied; the coordinator disarms the stale schedule before re-arming.
type UpdateAlarmRequest struct {
	Label      string     `json:"label"`
	Time       time.Time  `json:"time"`
	Enabled    bool       `json:"enabled"`
	RepeatDays RepeatDays `json:"repeat_days"`
}
