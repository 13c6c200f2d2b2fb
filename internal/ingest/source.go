package ingest

import (
	"io"
	"os"

	"github.com/logmill/logmill/internal/errors"
)

// Source is anything producing a sequence of raw rows.
type Source interface {
	// Open returns a reader over the raw row stream.
	Open() (io.ReadCloser, error)

	// Name identifies the source for logging and error messages.
	Name() string
}

// FileSource reads rows from a file on the local filesystem.
type FileSource struct {
	Path string
}

// Open opens the underlying file.
func (s *FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.NewLoadError(errors.CodeSourceUnavailable,
			"cannot open input "+s.Path, err)
	}
	return f, nil
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.Path
}

// ReaderSource wraps an io.Reader as a Source. Used by tests and by
// callers that already hold an open stream.
type ReaderSource struct {
	R     io.Reader
	Label string
}

// Open returns the wrapped reader.
func (s *ReaderSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(s.R), nil
}

// Name returns the source label.
func (s *ReaderSource) Name() string {
	if s.Label == "" {
		return "reader"
	}
	return s.Label
}
