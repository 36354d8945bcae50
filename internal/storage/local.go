package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes objects to root/<bucket>/<key>. The API serves root at
// /uploads.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalStore) abs(bucket, key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if strings.Contains(bucket, "..") || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("storage/local: bad bucket %q", bucket)
	}
	return filepath.Join(s.root, bucket, clean), nil
}

func (s *LocalStore) Put(_ context.Context, bucket, key string, r io.Reader, contentType string) (Object, error) {
	full, err := s.abs(bucket, key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, fmt.Errorf("storage/local: mkdir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return Object{}, fmt.Errorf("storage/local: create %s: %w", key, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return Object{}, fmt.Errorf("storage/local: write %s: %w", key, err)
	}
	return Object{
		Bucket:      bucket,
		Key:         key,
		URL:         s.URL(bucket, key),
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (s *LocalStore) URL(bucket, key string) string {
	return s.baseURL + "/uploads/" + bucket + "/" + strings.TrimLeft(key, "/")
}

func (s *LocalStore) Delete(_ context.Context, bucket, key string) error {
	full, err := s.abs(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage/local: delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) PresignPut(context.Context, string, string, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}

func (s *LocalStore) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrPresignUnsupported
}
