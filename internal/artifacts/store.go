// =============================================================================
// Journal Access Sync - Standalone Sheet Artifacts
// =============================================================================
//
// Every merged institution sheet is also kept as a standalone XLSX workbook,
// so an institution's own submission can be inspected without filtering the
// consolidated dataset.
//
// BACKENDS:
//   fs    workbooks under a local directory (default ./data/institutions)
//   s3    objects in an S3 bucket (aws-sdk-go-v2)
//   gcs   objects in a Google Cloud Storage bucket
//   none  nothing is written
//
// NAMING:
//   <prefix><institution slug>_<YYYYMMDD_HHMMSS>_<shortid>.xlsx
//
// =============================================================================

package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/xlsxparser"
	"github.com/ginjaninja78/journal-access-sync/pkg/utils"
)

// nameFormat is the object name of a standalone workbook.
const nameFormat = "{institution}_{timestamp}_{shortid}.xlsx"

// contentType is the MIME type of an XLSX workbook.
const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Store persists standalone institution sheets.
type Store interface {
	PersistStandaloneSheet(ctx context.Context, institution string, records []types.JournalRecord) error
}

// =============================================================================
// FACTORY
// =============================================================================

// New creates the store selected by cfg.Backend.
//
// RETURNS:
//   - The store, or nil for the "none" backend.
//   - An error if the backend is unknown or its client cannot be created.
func New(ctx context.Context, cfg config.ArtifactsConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendFS:
		return NewFileStore(cfg.Dir), nil
	case config.BackendS3:
		store, err := NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendGCS:
		store, err := NewGCSStore(ctx, GCSStoreConfig{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported artifacts backend: %s", cfg.Backend)
	}
}

// =============================================================================
// WORKBOOK RENDERING
// =============================================================================

// ObjectName returns the standalone workbook name for an institution.
func ObjectName(institution string, now time.Time) string {
	return utils.GenerateFileName(nameFormat, map[string]string{
		"institution": utils.Slug(institution),
	}, now)
}

// Render writes the records as a workbook with the source sheet header.
func Render(w io.Writer, institution string, records []types.JournalRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Journal, r.ISSN, r.Access, r.Notes}
	}
	return xlsxparser.Write(w, sheetName(institution), types.SheetColumns, rows)
}

func renderBytes(institution string, records []types.JournalRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, institution, records); err != nil {
		return nil, fmt.Errorf("failed to render workbook for %s: %w", institution, err)
	}
	return buf.Bytes(), nil
}

// sheetName trims an institution name to Excel's 31 character limit.
func sheetName(institution string) string {
	name := []rune(utils.Slug(institution))
	if len(name) > 31 {
		name = name[:31]
	}
	return string(name)
}

// =============================================================================
// FILESYSTEM STORE
// =============================================================================

// FileStore writes standalone workbooks to a local directory.
type FileStore struct {
	baseDir string
	now     func() time.Time
}

// NewFileStore creates a file store rooted at baseDir. The directory is
// created on the first write.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir, now: time.Now}
}

// PersistStandaloneSheet writes the records to a new workbook in the
// archive directory.
func (s *FileStore) PersistStandaloneSheet(_ context.Context, institution string, records []types.JournalRecord) error {
	path := filepath.Join(s.baseDir, ObjectName(institution, s.now()))

	err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		return Render(w, institution, records)
	})
	if err != nil {
		return fmt.Errorf("failed to write standalone sheet %s: %w", path, err)
	}
	return nil
}
