package uploader

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zip"
)

// CheckArchive verifies that the file at path parses as a zip container.
// BAR files produced by the toolkit are zip archives, so a file that fails
// this check was most likely caught mid-write or is corrupt. The check is
// advisory: callers log the result and upload regardless.
func CheckArchive(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	if len(r.File) == 0 {
		return errors.New("archive contains no entries")
	}
	return nil
}
