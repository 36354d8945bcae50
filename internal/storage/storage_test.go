package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/apperr"
)

// smallest valid PNG header + IHDR is enough for sniffing
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde,
}

func TestUploadImageToLocal(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "http://api.test/")
	owner := uuid.New()

	obj, err := Upload(context.Background(), store, BucketAvatars, owner, bytes.NewReader(pngBytes))
	require.NoError(t, err)

	assert.Equal(t, "image/png", obj.ContentType)
	assert.True(t, strings.HasPrefix(obj.Key, owner.String()+"/"))
	assert.True(t, strings.HasSuffix(obj.Key, ".png"))
	assert.Equal(t, "http://api.test/uploads/avatars/"+obj.Key, obj.URL)
	assert.EqualValues(t, len(pngBytes), obj.Size)

	onDisk, err := os.ReadFile(filepath.Join(root, BucketAvatars, filepath.FromSlash(obj.Key)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, onDisk)

	require.NoError(t, store.Delete(context.Background(), BucketAvatars, obj.Key))
	require.NoError(t, store.Delete(context.Background(), BucketAvatars, obj.Key))
}

func TestUploadRejectsNonImageInImageBucket(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	_, err := Upload(context.Background(), store, BucketGigGallery, uuid.New(), strings.NewReader("plain text, not a picture"))

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "file")
}

func TestUploadChatFileAcceptsAnyType(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	obj, err := Upload(context.Background(), store, BucketChatFiles, uuid.New(), strings.NewReader("meeting notes"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", obj.ContentType)
}

func TestUploadSizeLimit(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	big := bytes.Repeat([]byte("a"), 20<<20+1)
	_, err := Upload(context.Background(), store, BucketChatFiles, uuid.New(), bytes.NewReader(big))
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
}

func TestUploadUnknownBucketAndEmptyFile(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")

	_, err := Upload(context.Background(), store, "secrets", uuid.New(), strings.NewReader("x"))
	assert.True(t, apperr.Is(err, "NOT_FOUND"))

	_, err = Upload(context.Background(), store, BucketChatFiles, uuid.New(), strings.NewReader(""))
	assert.True(t, apperr.Is(err, "VALIDATION_ERROR"))
}

func TestLocalStoreCannotPresign(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")
	_, err := store.PresignPut(context.Background(), BucketChatFiles, "k", "text/plain", time.Minute)
	assert.ErrorIs(t, err, ErrPresignUnsupported)
}

func TestLocalStoreKeepsKeysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "")
	_, err := store.Put(context.Background(), BucketChatFiles, "../../escape.txt", strings.NewReader("x"), "text/plain")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, BucketChatFiles, "escape.txt"))
	assert.NoError(t, err)
}
