package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/bookings"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/reviews"
)

type BookingHandler struct {
	Bookings *bookings.Service
	Reviews  *reviews.Service
}

func NewBookingHandler(b *bookings.Service, r *reviews.Service) *BookingHandler {
	return &BookingHandler{Bookings: b, Reviews: r}
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req bookings.CreateInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Create(c.UserContext(), uid, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "booking created", b)
}

// List returns bookings the caller is part of; ?as=buyer|seller narrows the
// side and ?status the state.
func (h *BookingHandler) List(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Bookings.ListForUser(c.UserContext(), uid, bookings.ListFilter{
		As:     c.Query("as"),
		Status: c.Query("status"),
		Page:   pageFrom(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Get(c.UserContext(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", b)
}

type transitionReq struct {
	Status string `json:"status"`
}

func (h *BookingHandler) Transition(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req transitionReq
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Transition(c.UserContext(), uid, id, models.BookingStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "booking updated", b)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) Cancel(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req cancelReq
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.Cancel(c.UserContext(), uid, id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "booking cancelled", b)
}

// Review lets the buyer rate a completed booking.
func (h *BookingHandler) Review(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req reviews.CreateInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	r, err := h.Reviews.Create(c.UserContext(), uid, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "review submitted", r)
}

// Dashboard is the seller overview: booking counts, earnings and inbox.
func (h *BookingHandler) Dashboard(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	d, err := h.Bookings.SellerDashboard(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", d)
}
