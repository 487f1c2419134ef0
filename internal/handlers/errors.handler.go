package handlers

import (
	"errors"

	"pitstop/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// errorResponse maps controller error classes onto HTTP statuses. Unknown
// errors stay opaque to the client.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
		message = "Not found"
	case errors.Is(err, apperrors.ErrValidation):
		status = fiber.StatusBadRequest
		message = "Invalid request"
	case errors.Is(err, apperrors.ErrConflict):
		status = fiber.StatusConflict
		message = "Conflict"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		status = fiber.StatusConflict
		message = "Invalid state transition"
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
