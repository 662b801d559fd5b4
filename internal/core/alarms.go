package core

import (
	"errors"
	"fmt"

	"github.com/chimelab/chime/pkg/models"

	"github.com/google/uuid"
)

var (
	// ErrAlarmNotFound is returned when an alarm cannot be located.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrInvalidAlarmConfiguration indicates the request payload failed validation.
	ErrInvalidAlarmConfiguration = errors.New("invalid alarm configuration")
)

func validateRepeatDays(repeat models.RepeatDays) error {
	for d := range repeat {
		if !d.Valid() {
			return fmt.Errorf("%w: unknown weekday token %q", ErrInvalidAlarmConfiguration, d)
		}
	}
	return nil
}

// ValidateCreateRequest checks a create payload.
func ValidateCreateRequest(req *models.CreateAlarmRequest) error {
	if req == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidAlarmConfiguration)
	}
	if req.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidAlarmConfiguration)
	}
	return validateRepeatDays(req.RepeatDays)
}

// ValidateUpdateRequest checks an update payload.
func ValidateUpdateRequest(req *models.UpdateAlarmRequest) error {
	if req == nil {
		return fmt.Errorf("%w: payload is required", ErrInvalidAlarmConfiguration)
	}
	if req.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrInvalidAlarmConfiguration)
	}
	return validateRepeatDays(req.RepeatDays)
}

// NewAlarm builds an alarm record from a create payload. New alarms start
// enabled with no scheduled handle; the coordinator arms the first
// occurrence.
func NewAlarm(req *models.CreateAlarmRequest) *models.Alarm {
	repeat := req.RepeatDays
	if repeat == nil {
		repeat = models.RepeatDays{}
	}
	return &models.Alarm{
		ID:         uuid.New().String(),
		Label:      req.Label,
		Time:       req.Time,
		Enabled:    true,
		RepeatDays: repeat,
	}
}

// ApplyUpdate copies an update payload onto an existing record. The caller
// is responsible for disarming the stale schedule first.
func ApplyUpdate(alarm *models.Alarm, req *models.UpdateAlarmRequest) {
	alarm.Label = req.Label
	alarm.Time = req.Time
	alarm.Enabled = req.Enabled
	if req.RepeatDays == nil {
		alarm.RepeatDays = models.RepeatDays{}
	} else {
		alarm.RepeatDays = req.RepeatDays
	}
}
