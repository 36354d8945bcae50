package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services"
)

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, apperr.Unauthorized("login required")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil, apperr.Unauthorized("invalid session")
		}
		return id, nil
	default:
		return uuid.Nil, apperr.Unauthorized("invalid session")
	}
}

// viewerUUID is getUserUUID for routes open to anonymous callers.
func viewerUUID(c *fiber.Ctx) uuid.UUID {
	id, err := getUserUUID(c)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Field(name, "must be a valid id")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.BadRequest("invalid body", err)
	}
	return nil
}

func pageFrom(c *fiber.Ctx) services.Page {
	return services.Page{Page: c.QueryInt("page", 1), Limit: c.QueryInt("limit", services.DefaultLimit)}
}

func queryInt64(c *fiber.Ctx, key string) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
