package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/utils"
)

// TokenFrom returns the session token from the cookie, an Authorization
// bearer header or the ?token= query parameter, in that order. The query
// form exists for websocket clients that cannot set headers.
func TokenFrom(c *fiber.Ctx) string {
	if tok := c.Cookies(utils.CookieName); tok != "" {
		return tok
	}
	if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

// JWT rejects requests without a valid session token and stores the claims
// under "user".
func JWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := TokenFrom(c)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}
		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("user", claims)
		return c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present and lets
// anonymous requests through.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenStr := TokenFrom(c); tokenStr != "" {
			if claims, err := utils.ParseJWT(secret, tokenStr); err == nil {
				c.Locals("user", claims)
				setLocals(c, claims)
			}
		}
		return c.Next()
	}
}
