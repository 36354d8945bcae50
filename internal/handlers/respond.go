package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

func ok(c *fiber.Ctx, message string, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func created(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// respondError renders err as the failure envelope. Unknown errors are
// logged and reported as 500 without detail.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"message": fe.Message,
		})
	}

	appErr, found := apperr.As(err)
	if !found {
		appErr = apperr.Internal("internal server error", err)
	}
	if appErr.Status >= fiber.StatusInternalServerError {
		logger.WithCtx(c.UserContext()).Error("request failed",
			"method", c.Method(), "path", c.Path(), "code", appErr.Code, "err", appErr.Err)
	}

	body := fiber.Map{
		"success": false,
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	return c.Status(appErr.Status).JSON(body)
}

// ErrorHandler is the fiber app error handler; it renders errors returned
// by middleware and handlers alike.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

// NotFound is the catch-all for unknown routes.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"message": "route not found",
	})
}
