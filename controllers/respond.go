package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"venturelink/engine"
	"venturelink/utils"
)

// engineError maps the engine's typed failures onto HTTP responses so
// clients can branch on status the way engine callers branch on kind.
func engineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrConflict):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Conflict", err)
	case errors.Is(err, engine.ErrInvalidArgument):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid argument", err)
	case errors.Is(err, engine.ErrInvalidState):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Invalid state", err)
	case errors.Is(err, engine.ErrDependencyFailure):
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "Upstream dependency failed", err)
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal error", err)
	}
}
