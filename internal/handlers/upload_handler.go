package handlers

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/storage"
)

const presignTTL = 15 * time.Minute

type UploadHandler struct {
	Store storage.Store
}

func NewUploadHandler(store storage.Store) *UploadHandler {
	return &UploadHandler{Store: store}
}

// uploadForm reads multipart field from the request and stores it in bucket.
func uploadForm(c *fiber.Ctx, store storage.Store, field, bucket string, owner uuid.UUID) (storage.Object, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return storage.Object{}, apperr.Field(field, "is required")
	}
	f, err := fh.Open()
	if err != nil {
		return storage.Object{}, apperr.BadRequest("could not read upload", err)
	}
	defer f.Close()
	return storage.Upload(c.UserContext(), store, bucket, owner, f)
}

// Upload stores multipart field "file" in the bucket named by the route.
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	bucket := c.Params("bucket")
	if _, err := storage.RuleFor(bucket); err != nil {
		return respondError(c, err)
	}
	obj, err := uploadForm(c, h.Store, "file", bucket, uid)
	if err != nil {
		return respondError(c, err)
	}
	return created(c, "file uploaded", obj)
}

type presignReq struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type presignResp struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Presign hands out a direct PUT URL so large files skip the API.
// Drivers without presigning answer 501.
func (h *UploadHandler) Presign(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return respondError(c, err)
	}
	bucket := c.Params("bucket")
	if _, err := storage.RuleFor(bucket); err != nil {
		return respondError(c, err)
	}
	var req presignReq
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.ContentType == "" {
		return respondError(c, apperr.Field("content_type", "is required"))
	}

	key := storage.NewKey(uid, filepath.Ext(req.Filename))
	u, err := h.Store.PresignPut(c.UserContext(), bucket, key, req.ContentType, presignTTL)
	if errors.Is(err, storage.ErrPresignUnsupported) {
		return respondError(c, apperr.New("NOT_IMPLEMENTED", "direct uploads are not available", fiber.StatusNotImplemented, err))
	}
	if err != nil {
		return respondError(c, apperr.Internal("could not presign upload", err))
	}
	return ok(c, "", presignResp{
		Bucket:    bucket,
		Key:       key,
		UploadURL: u,
		URL:       h.Store.URL(bucket, key),
		ExpiresAt: time.Now().Add(presignTTL).UTC(),
	})
}
