package server

import (
	"errors"

	"github.com/chimelab/chime/internal/core"
	"github.com/chimelab/chime/internal/timer"
	"github.com/chimelab/chime/pkg/models"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleListAlarms(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, s.coord.List(c.Context()))
}

func (s *Server) handleGetAlarm(c *fiber.Ctx) error {
	alarm, err := s.coord.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, core.ErrAlarmNotFound) {
			return SendErrorWithType(c, fiber.StatusNotFound, "Alarm not found", models.NotFoundErrorType)
		}
		s.log.Error("failed to get alarm", "alarm_id", c.Params("id"), "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to retrieve alarm", models.GeneralErrorType)
	}
	return SendSuccess(c, fiber.StatusOK, alarm)
}

func (s *Server) handleCreateAlarm(c *fiber.Ctx) error {
	var req models.CreateAlarmRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	alarms, err := s.coord.Create(c.Context(), &req)
	if err != nil {
		return s.sendMutationError(c, "create", err, alarms)
	}
	return SendSuccess(c, fiber.StatusCreated, alarms)
}

func (s *Server) handleUpdateAlarm(c *fiber.Ctx) error {
	var req models.UpdateAlarmRequest
	if err := c.BodyParser(&req); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest, "Invalid request body", models.ValidationErrorType)
	}

	alarms, err := s.coord.Update(c.Context(), c.Params("id"), &req)
	if err != nil {
		return s.sendMutationError(c, "update", err, alarms)
	}
	return SendSuccess(c, fiber.StatusOK, alarms)
}

func (s *Server) handleToggleAlarm(c *fiber.Ctx) error {
	alarms, err := s.coord.Toggle(c.Context(), c.Params("id"))
	if err != nil {
		return s.sendMutationError(c, "toggle", err, alarms)
	}
	return SendSuccess(c, fiber.StatusOK, alarms)
}

func (s *Server) handleDeleteAlarm(c *fiber.Ctx) error {
	alarms, err := s.coord.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return s.sendMutationError(c, "delete", err, alarms)
	}
	return SendSuccess(c, fiber.StatusOK, alarms)
}

// sendMutationError maps coordinator failures onto typed API errors.
// Permission denial propagates distinctly so the client can offer the
// permission-request flow instead of a generic failure; the refreshed
// list, when available, rides along so the client still renders current
// state.
func (s *Server) sendMutationError(c *fiber.Ctx, op string, err error, alarms []*models.Alarm) error {
	switch {
	case errors.Is(err, core.ErrInvalidAlarmConfiguration):
		return SendErrorWithType(c, fiber.StatusBadRequest, err.Error(), models.ValidationErrorType)
	case errors.Is(err, core.ErrAlarmNotFound):
		return SendErrorWithType(c, fiber.StatusNotFound, "Alarm not found", models.NotFoundErrorType)
	case errors.Is(err, timer.ErrPermissionDenied):
		s.log.Warn("alarm mutation blocked by exact-alarm permission", "op", op)
		return c.Status(fiber.StatusConflict).JSON(models.APIResponse{
			Status:    "error",
			Message:   "Exact alarm scheduling is not permitted; request permission and retry",
			ErrorType: models.PermissionErrorType,
			Data:      alarms,
		})
	case errors.Is(err, timer.ErrPlatformFailure):
		s.log.Error("alarm mutation failed at platform gateway", "op", op, "error", err)
		return SendErrorWithType(c, fiber.StatusBadGateway, "Platform timer failure", models.PlatformErrorType)
	default:
		s.log.Error("alarm mutation failed", "op", op, "error", err)
		return SendErrorWithType(c, fiber.StatusInternalServerError, "Failed to "+op+" alarm", models.GeneralErrorType)
	}
}
