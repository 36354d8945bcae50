package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/utils"
)

// AttachJWTLocals copies the claims stored by JWT into "userId" and "role".
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("user").(*utils.Claims)
		if !ok || claims == nil {
			return fiber.ErrUnauthorized
		}
		if strings.TrimSpace(claims.UserID) == "" {
			return fiber.ErrUnauthorized
		}
		setLocals(c, claims)
		return c.Next()
	}
}

func setLocals(c *fiber.Ctx, claims *utils.Claims) {
	c.Locals("userId", strings.TrimSpace(claims.UserID))
	c.Locals("role", strings.ToLower(strings.TrimSpace(claims.Role)))
}
