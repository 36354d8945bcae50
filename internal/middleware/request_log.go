package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

// InjectLogger stores a logger tagged with the request id in the request's
// user context so logger.WithCtx picks it up downstream. It must run after
// requestid.New().
func InjectLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		log := logger.L.With("request_id", id)
		c.SetUserContext(logger.Inject(c.UserContext(), log))
		return c.Next()
	}
}
