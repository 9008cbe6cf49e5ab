//go:build gcp

package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSArchiveStore stores export packs in Google Cloud Storage,
// content-addressed by SHA-256.
type GCSArchiveStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSArchiveConfig holds configuration for GCSArchiveStore.
type GCSArchiveConfig struct {
	Bucket string
	Prefix string // optional key prefix
}

// NewGCSArchiveStore creates a GCS-backed archive store using ADC credentials.
func NewGCSArchiveStore(ctx context.Context, cfg GCSArchiveConfig) (*GCSArchiveStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: create GCS client: %w", err)
	}
	return &GCSArchiveStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Store uploads data under its hash and returns the content address. Uploads
// are idempotent.
func (s *GCSArchiveStore) Store(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	objectPath := s.prefix + hash + ".zip"

	obj := s.client.Bucket(s.bucket).Object(objectPath)
	if _, err := obj.Attrs(ctx); err == nil {
		return "sha256:" + hash, nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return "", fmt.Errorf("audit: gcs attrs: %w", err)
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/zip"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("audit: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("audit: gcs close: %w", err)
	}
	return "sha256:" + hash, nil
}
