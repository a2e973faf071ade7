package archivesource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSource reads the archive payload from the local filesystem.
type FileSource struct {
	path string
	log  *slog.Logger
}

// NewFileSource creates a file-backed archive source for the given path.
func NewFileSource(path string, log *slog.Logger) *FileSource {
	return &FileSource{path: path, log: log}
}

// Fetch reads the payload file. Returns ErrArchiveNotFound if the file does
// not exist.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}

	s.log.Debug("Fetched archive payload from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks that the file's directory exists.
func (s *FileSource) Available(ctx context.Context) bool {
	_, err := os.Stat(filepath.Dir(s.path))
	return err == nil
}

// Name returns a unique identifier for this source.
func (s *FileSource) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(s.path))
}
