package dataset

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zipcode-cli/internal/model"
)

// FileSource reads records from a local file, optionally compressed or zipped.
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates an accessor for the file at path.
func NewFileSource(path string, format Format) *FileSource {
	return &FileSource{path: path, format: format}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]model.Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, unavailable(s.Name(), eris.Wrap(err, "file: open"))
	}
	defer f.Close() //nolint:errcheck

	records, err := Read(ctx, f, filepath.Base(s.path), s.format)
	if err != nil {
		return nil, unavailable(s.Name(), err)
	}
	return records, nil
}
