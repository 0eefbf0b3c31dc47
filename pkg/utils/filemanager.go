// =============================================================================
// Journal Access Sync - File Manager Utility
// =============================================================================
//
// This module provides file utilities shared by the stores, the artifact
// backends and the CLI:
//   - Unique file naming with placeholders
//   - Atomic file replacement (write to a temp file, then rename)
//   - Run report files (failure report, processing summary)
//
// WRITE STRATEGY:
//   Files that other runs read back (the dataset, reports) are written to a
//   temporary file in the destination directory and renamed into place, so a
//   crash never leaves a half-written file behind.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateFileName generates a unique file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {shortid}   - The first eight characters of a random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {<key>}     - Any key of params
//   - params: A map of placeholder values.
//   - now: The time used for the time placeholders.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//
//	format: "{institution}_{timestamp}_{shortid}.xlsx"
//	params: {"institution": "oxford"}
//	output: "oxford_20260115_143022_a1b2c3d4.xlsx"
func GenerateFileName(format string, params map[string]string, now time.Time) string {
	id := uuid.New().String()

	replacements := map[string]string{
		"{uuid}":      id,
		"{shortid}":   id[:8],
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns an institution name into a lowercase file-name-safe token.
//
// EXAMPLE:
//
//	"University of St Andrews" -> "university_of_st_andrews"
func Slug(name string) string {
	s := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// =============================================================================
// ATOMIC WRITES
// =============================================================================

// WriteFileAtomic creates or replaces path with the content produced by
// write. Parent directories are created as needed.
//
// PARAMETERS:
//   - path: The destination file.
//   - write: Produces the file content.
//
// RETURNS:
//   - An error if any step fails; path is then left as it was.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err = write(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
