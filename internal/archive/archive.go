// Package archive packages multi-file conversion results as a ZIP container.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
)

// ErrNoEntries is returned when asked to package nothing.
var ErrNoEntries = errors.New("archive has no entries")

// entryTime is stamped on every entry so equal inputs give equal archives.
var entryTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Entry is one file in the archive.
type Entry struct {
	Name string
	Data []byte
}

// PageName returns the stable entry name for the zero-based page index i,
// e.g. page_001.png.
func PageName(i int, ext string) string {
	return fmt.Sprintf("page_%03d.%s", i+1, ext)
}

// Zip writes entries, in order, to a Deflate-compressed ZIP.
func Zip(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: entryTime,
		})
		if err != nil {
			return nil, fmt.Errorf("adding %s: %w", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}
	return buf.Bytes(), nil
}
