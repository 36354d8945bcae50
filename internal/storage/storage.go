// Package storage keeps uploaded objects in named buckets. Two drivers exist:
// "local" writes under a directory served by the API itself, "s3" talks to
// any S3-compatible service.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
)

const (
	BucketAvatars    = "avatars"
	BucketGigGallery = "gig-gallery"
	BucketChatFiles  = "chat-files"
)

var ErrPresignUnsupported = errors.New("storage: driver cannot presign URLs")

// Rule limits what a bucket accepts.
type Rule struct {
	MaxBytes   int64
	ImagesOnly bool
}

var rules = map[string]Rule{
	BucketAvatars:    {MaxBytes: 5 << 20, ImagesOnly: true},
	BucketGigGallery: {MaxBytes: 5 << 20, ImagesOnly: true},
	BucketChatFiles:  {MaxBytes: 20 << 20},
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// RuleFor returns the limits of bucket, or a 404 error for unknown names.
func RuleFor(bucket string) (Rule, error) {
	r, ok := rules[bucket]
	if !ok {
		return Rule{}, apperr.NotFound("Bucket", nil)
	}
	return r, nil
}

type Object struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) (Object, error)
	URL(bucket, key string) string
	Delete(ctx context.Context, bucket, key string) error
	PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// NewKey returns "<owner>/<uuid><ext>".
func NewKey(owner uuid.UUID, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(owner.String(), uuid.NewString()+strings.ToLower(ext))
}

// Upload checks r against the bucket's rule, sniffs its type and stores it
// under a fresh key owned by owner.
func Upload(ctx context.Context, s Store, bucket string, owner uuid.UUID, r io.Reader) (Object, error) {
	rule, err := RuleFor(bucket)
	if err != nil {
		return Object{}, err
	}

	// one extra byte tells "exactly max" from "too big"
	data, err := io.ReadAll(io.LimitReader(r, rule.MaxBytes+1))
	if err != nil {
		return Object{}, apperr.BadRequest("could not read upload", err)
	}
	if len(data) == 0 {
		return Object{}, apperr.Field("file", "is required")
	}
	if int64(len(data)) > rule.MaxBytes {
		return Object{}, apperr.Field("file", fmt.Sprintf("must be at most %d MB", rule.MaxBytes>>20))
	}

	mt := mimetype.Detect(data)
	contentType := strings.SplitN(mt.String(), ";", 2)[0]
	if rule.ImagesOnly && !imageTypes[contentType] {
		return Object{}, apperr.Field("file", "must be a JPEG, PNG, WEBP or GIF image")
	}

	obj, err := s.Put(ctx, bucket, NewKey(owner, mt.Extension()), bytes.NewReader(data), contentType)
	if err != nil {
		return Object{}, apperr.Internal("could not store upload", err)
	}
	obj.Size = int64(len(data))
	return obj, nil
}
