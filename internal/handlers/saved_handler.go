package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/saved"
)

type SavedHandler struct {
	Saved *saved.Service
}

func (h *SavedHandler) List(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Saved.List(c.UserContext(), uid, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

func (h *SavedHandler) Save(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	sellerID, err := paramUUID(c, "sellerId")
	if err != nil {
		return respondError(c, err)
	}
	row, err := h.Saved.Save(c.UserContext(), uid, sellerID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "seller saved", row)
}

func (h *SavedHandler) Unsave(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	sellerID, err := paramUUID(c, "sellerId")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Saved.Unsave(c.UserContext(), uid, sellerID); err != nil {
		return respondError(c, err)
	}
	return ok(c, "seller removed", nil)
}
