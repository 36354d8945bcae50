package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/messaging"
)

type ChatHandler struct {
	Messages *messaging.Service
}

func NewChatHandler(svc *messaging.Service) *ChatHandler {
	return &ChatHandler{Messages: svc}
}

// Conversations lists the caller's threads, most recent first, with unread
// counts.
func (h *ChatHandler) Conversations(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	convs, err := h.Messages.Conversations(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", convs)
}

// History returns a page of the thread with :userId. ?before=<message id>
// pages backwards.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	other, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Messages.History(c.UserContext(), uid, other, messaging.HistoryQuery{
		Before: c.Query("before"),
		Limit:  c.QueryInt("limit", 0),
	})
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

func (h *ChatHandler) Send(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	other, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	var req messaging.SendInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	m, err := h.Messages.Send(c.UserContext(), uid, other, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "message sent", m)
}

type markReadReq struct {
	IDs []uuid.UUID `json:"ids"`
}

// MarkRead stamps read_at on messages from :userId to the caller. An empty
// body marks the whole thread.
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	other, err := paramUUID(c, "userId")
	if err != nil {
		return respondError(c, err)
	}
	var req markReadReq
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
	}
	n, err := h.Messages.MarkRead(c.UserContext(), uid, other, req.IDs)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", fiber.Map{"updated": n})
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	n, err := h.Messages.UnreadTotal(c.UserContext(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", fiber.Map{"unread": n})
}
