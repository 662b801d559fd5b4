package models

import (
	"fmt"
	"strings"
	"time"
)

// SignalType identifies the kind of wake signal delivered from outside the
// normal in-process call flow.
type SignalType string

const (
	SignalFired     SignalType = "FIRED"
	SignalDismissed SignalType = "DISMISSED"
	SignalSnoozed   SignalType = "SNOOZED"
)

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	switch t {
	case SignalFired, SignalDismissed, SignalSnoozed:
		return true
	}
	return false
}

// SnoozeKeyPrefix prefixes the synthetic timer id armed for a snoozed
// alarm. A snooze entry is independent of the parent record's schedule.
const SnoozeKeyPrefix = "snooze-"

// SnoozeKey returns the synthetic timer id for a snoozed alarm.
func SnoozeKey(alarmID string) string {
	return SnoozeKeyPrefix + alarmID
}

// IsSnoozeKey reports whether id names a snooze entry and returns the
// parent alarm id.
func IsSnoozeKey(id string) (string, bool) {
	parent, ok := strings.CutPrefix(id, SnoozeKeyPrefix)
	if !ok {
		return "", false
	}
	return parent, true
}

// Signal is a wake signal: an alarm fired, or the user dismissed or
// snoozed a ringing alarm. Signals may originate outside the process
// lifetime; the same payload shape is carried in process-launch parameters
// on cold start.
//
// SignalID correlates duplicate deliveries of one physical event (for
// example a full-screen launch and a notification tap for the same
// firing). Occurrence is the trigger instant the event refers to and is
// part of the de-duplication key when SignalID is absent.
type Signal struct {
	SignalID   string     `json:"signal_id,omitempty"`
	Type       SignalType `json:"event_type"`
	AlarmID    string     `json:"alarm_id"`
	Label      string     `json:"label,omitempty"`
	Occurrence time.Time  `json:"occurrence,omitempty"`
}

// DedupKey returns the key under which duplicate deliveries of the same
// physical event collapse.
func (s Signal) DedupKey() string {
	if s.SignalID != "" {
		return s.SignalID
	}
	return fmt.Sprintf("%s|%s|%d", s.Type, s.AlarmID, s.Occurrence.UnixMilli())
}
