// Package gcs archives scraped quote pages in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/market-quotes-api/internal/quotes"
)

// Config names the bucket pages are archived to.
type Config struct {
	Bucket string
}

// BlobStore writes archived quote pages to a GCS bucket. Objects laid out by
// quotes.ArchivePath are tagged with their instrument and fetch time so a
// bucket listing can be filtered without downloading pages.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed page archive.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: bucket}, nil
}

// PutObject uploads one page and returns its gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	// Archived pages are immutable snapshots.
	w.CacheControl = "private, max-age=31536000, immutable"
	w.Metadata = pageMetadata(path)

	if _, err := io.Copy(w, r); err != nil {
		if closeErr := w.Close(); closeErr != nil {
			return "", fmt.Errorf("upload %s: %w (close writer: %v)", path, err, closeErr)
		}
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", path, err)
	}
	return "gs://" + s.bucket + "/" + path, nil
}

func pageMetadata(path string) map[string]string {
	instrument, fetchedAt, ok := quotes.ParseArchivePath(path)
	if !ok {
		return nil
	}
	return map[string]string{
		"instrument": instrument,
		"fetched_at": fetchedAt.UTC().Format(time.RFC3339Nano),
	}
}
