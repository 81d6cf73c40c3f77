// Package apierr maps service errors to HTTP responses.
package apierr

import (
	"errors"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Status picks the HTTP status for a service error.
func Status(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case services.IsNotFound(err):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrNotCreated),
		errors.Is(err, services.ErrCheckInRejected),
		errors.Is(err, services.ErrAggregationConflict):
		return fiber.StatusConflict
	case services.IsTransient(err):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes {"error": ...} with the mapped status. Server errors are logged.
func Respond(c *fiber.Ctx, err error) error {
	status := Status(err)
	if status >= fiber.StatusInternalServerError {
		configslog.Log.Error("Request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// BadRequest answers a malformed request body or parameter.
func BadRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
