package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
)

type CategoryHandler struct {
	Gigs *gigs.Service
}

func NewCategoryHandler(svc *gigs.Service) *CategoryHandler {
	return &CategoryHandler{Gigs: svc}
}

// GetCategories lists the categories that have at least one published gig.
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.Gigs.Categories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", categories)
}
