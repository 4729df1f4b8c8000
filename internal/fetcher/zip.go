package fetcher

import (
	"archive/zip"
	"bytes"
	"io"

	"github.com/rotisserie/eris"
)

// ReadZIPEntry buffers a ZIP archive from r and opens the first file entry
// accepted by match. It returns the entry reader and the entry name.
func ReadZIPEntry(r io.Reader, match func(name string) bool) (io.ReadCloser, string, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: read archive")
	}
	return OpenZIPEntry(bytes.NewReader(body), int64(len(body)), match)
}

// OpenZIPEntry opens the first file entry of the archive accepted by match.
// Directories are skipped.
func OpenZIPEntry(r io.ReaderAt, size int64, match func(name string) bool) (io.ReadCloser, string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, "", eris.Wrap(err, "zip: open archive")
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !match(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", eris.Wrapf(err, "zip: open entry %s", f.Name)
		}
		return rc, f.Name, nil
	}

	return nil, "", eris.New("zip: no matching entry in archive")
}
