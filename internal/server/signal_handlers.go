package server

import (
	"github.com/chimelab/chime/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// handlePostSignal ingests a wake signal from a platform adapter: the
// native ringing activity posting a dismiss/snooze, or a cold-started
// client redelivering the launch signal with bootstrap=1. The bridge
// de-duplicates, so a redelivery of an already-seen event is accepted and
// dropped silently.
func (s *Server) handlePostSignal(c *fiber.Ctx) error {
	var sig models.Signal
	if err := c.BodyParser(&sig); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}
	if !sig.Type.Valid() {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Unknown event_type", models.ValidationErrorType)
	}
	if sig.AlarmID == "" {
		return SendErrorWithType(c, fiber.StatusBadRequest, "alarm_id is required", models.ValidationErrorType)
	}

	// Duplicate deliveries of one physical event must share a signal_id to
	// collapse; an adapter that omits it gets a fresh identity per post. A
	// bootstrap redelivery keeps whatever identity the launch parameters
	// carried so it collapses with the live delivery of the same event.
	bootstrap := c.QueryBool("bootstrap")
	if sig.SignalID == "" && !bootstrap {
		sig.SignalID = uuid.New().String()
	}

	if bootstrap {
		s.bridge.Bootstrap(sig)
	} else {
		s.bridge.Publish(sig)
	}
	return SendSuccess(c, fiber.StatusAccepted, nil)
}

// handleListRinging reports the entries currently in the Firing state for
// the ringing screen.
func (s *Server) handleListRinging(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, s.coord.RingingNow())
}

// PermissionResponse reports the exact-alarm authorization state.
type PermissionResponse struct {
	CanScheduleExact bool `json:"can_schedule_exact"`
}

func (s *Server) handleGetPermission(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, PermissionResponse{
		CanScheduleExact: s.coord.CanScheduleExact(c.Context()),
	})
}

// handleRequestPermission runs the gateway's authorization flow and
// re-arms enabled alarms once it succeeds.
func (s *Server) handleRequestPermission(c *fiber.Ctx) error {
	if err := s.coord.RequestPermission(c.Context()); err != nil {
		s.log.Error("permission request failed", "error", err)
		return SendErrorWithType(c, fiber.StatusBadGateway, "Permission request failed", models.PlatformErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, PermissionResponse{
		CanScheduleExact: s.coord.CanScheduleExact(c.Context()),
	})
}
