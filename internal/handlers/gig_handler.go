package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/services/gigs"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

type GigHandler struct {
	Gigs  *gigs.Service
	Store storage.Store
}

func NewGigHandler(svc *gigs.Service, store storage.Store) *GigHandler {
	return &GigHandler{Gigs: svc, Store: store}
}

// List is the public catalogue: published gigs only.
func (h *GigHandler) List(c *fiber.Ctx) error {
	f := gigs.ListFilter{
		Q:        strings.TrimSpace(c.Query("q")),
		Category: c.Query("category"),
		SellerID: c.Query("seller_id"),
		MinPrice: queryInt64(c, "min_price"),
		MaxPrice: queryInt64(c, "max_price"),
		Sort:     c.Query("sort"),
		Page:     pageFrom(c),
	}
	res, err := h.Gigs.ListPublic(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

// ListMine returns the caller's gigs in every status, or only those named
// in ?status=draft,archived.
func (h *GigHandler) ListMine(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	var statuses []string
	if s := c.Query("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, part)
			}
		}
	}
	res, err := h.Gigs.ListMine(c.UserContext(), uid, statuses, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", res)
}

func (h *GigHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.Get(c.UserContext(), viewerUUID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "", g)
}

func (h *GigHandler) Create(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req gigs.CreateInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.Create(c.UserContext(), uid, req)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "gig created", g)
}

func (h *GigHandler) Update(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req gigs.UpdateInput
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.Update(c.UserContext(), uid, id, req)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "gig updated", g)
}

func (h *GigHandler) Publish(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.Publish(c.UserContext(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "gig published", g)
}

func (h *GigHandler) Archive(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.Archive(c.UserContext(), uid, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, "gig archived", g)
}

func (h *GigHandler) Delete(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.Gigs.Delete(c.UserContext(), uid, id); err != nil {
		return respondError(c, err)
	}
	return ok(c, "gig deleted", nil)
}

// UploadGallery stores multipart field "image" in the gig-gallery bucket
// and appends its URL to the gig.
func (h *GigHandler) UploadGallery(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := h.Gigs.Get(c.UserContext(), uid, id); err != nil {
		return respondError(c, err)
	}

	obj, err := uploadForm(c, h.Store, "image", storage.BucketGigGallery, uid)
	if err != nil {
		return respondError(c, err)
	}
	g, err := h.Gigs.AddGalleryImage(c.UserContext(), uid, id, obj.URL)
	if err != nil {
		_ = h.Store.Delete(c.UserContext(), obj.Bucket, obj.Key)
		return respondError(c, err)
	}
	return ok(c, "image added", g)
}
