package server

import (
	"github.com/chimelab/chime/pkg/models"

	"github.com/gofiber/fiber/v2"
)

// SendSuccess writes a success envelope with the given payload.
func SendSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(models.APIResponse{
		Status: "success",
		Data:   data,
	})
}

// SendError writes a general error envelope.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithType(c, status, message, models.GeneralErrorType)
}

// SendErrorWithType writes an error envelope with a typed error class so
// clients can branch without parsing messages.
func SendErrorWithType(c *fiber.Ctx, status int, message string, errorType models.APIErrorType) error {
	return c.Status(status).JSON(models.APIResponse{
		Status:    "error",
		Message:   message,
		ErrorType: errorType,
	})
}
