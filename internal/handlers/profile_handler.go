package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/profiles"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/reviews"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

type ProfileHandler struct {
	Auth    *AuthHandler
	Reviews *reviews.Service
	Store   storage.Store
}

// GetByUsername returns the public card of a profile; contact details are
// only shown to the owner.
func (h *ProfileHandler) GetByUsername(c *fiber.Ctx) error {
	p, err := h.Auth.Profiles.GetByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	if p.ID == viewerUUID(c) {
		return ok(c, "", p)
	}
	return ok(c, "", p.Public())
}

// UpdateMe edits the caller's profile. A role switch re-issues the session
// so the new role reaches role-gated routes at once.
func (h *ProfileHandler) UpdateMe(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req profiles.UpdateInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	p, err := h.Auth.Profiles.Update(c.UserContext(), uid, req)
	if err != nil {
		return respondError(c, err)
	}
	if req.Role != nil {
		token, err := h.Auth.setSession(c, p)
		if err != nil {
			return respondError(c, err)
		}
		return ok(c, "profile updated", authResponse{Token: token, Profile: p})
	}
	return ok(c, "profile updated", p)
}

// UploadAvatar stores multipart field "avatar" in the avatars bucket and
// points the profile at it.
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	obj, err := uploadForm(c, h.Store, "avatar", storage.BucketAvatars, uid)
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.Auth.Profiles.SetAvatar(c.UserContext(), uid, obj.URL)
	if err != nil {
		_ = h.Store.Delete(c.UserContext(), obj.Bucket, obj.Key)
		return respondError(c, err)
	}
	return ok(c, "avatar updated", p)
}

func (h *ProfileHandler) ListReviews(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.Reviews.ListForUser(c.UserContext(), id, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

func (h *ProfileHandler) Rating(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	sum, err := h.Reviews.Summary(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", sum)
}
