package sharestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ruteri/threshold-xks/interfaces"
)

// FileSource reads a share document from the local file system.
type FileSource struct {
	path string
	log  *slog.Logger
}

// NewFileSource creates a source for the document at path.
func NewFileSource(path string, log *slog.Logger) *FileSource {
	return &FileSource{path: path, log: log}
}

// Fetch reads the document. A missing or unreadable file is reported as
// ErrSourceUnavailable, since volumes may be mounted after process start.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrSourceUnavailable, err)
	}

	s.log.Debug("Fetched share document from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))

	return data, nil
}

// Name returns a unique identifier for this source.
func (s *FileSource) Name() string {
	return fmt.Sprintf("file-%s", s.path)
}
