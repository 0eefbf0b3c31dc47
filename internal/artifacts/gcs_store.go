package artifacts

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
)

// GCSStore writes standalone workbooks to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	now    func() time.Time
}

// GCSStoreConfig holds configuration for GCSStore.
type GCSStoreConfig struct {
	Bucket string
	Prefix string
}

// NewGCSStore creates a GCS-backed store using application default
// credentials.
func NewGCSStore(ctx context.Context, cfg GCSStoreConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for GCS artifacts")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}, nil
}

// PersistStandaloneSheet uploads the records as a new workbook object.
func (s *GCSStore) PersistStandaloneSheet(ctx context.Context, institution string, records []types.JournalRecord) error {
	data, err := renderBytes(institution, records)
	if err != nil {
		return err
	}

	objectPath := s.prefix + ObjectName(institution, s.now())
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write failed for %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close failed for %s: %w", objectPath, err)
	}
	return nil
}

// Close releases the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
