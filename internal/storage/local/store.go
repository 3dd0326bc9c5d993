// Package local stores application documents on the local filesystem under
// a configured root directory.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/storage"
)

type Store struct {
	root   string
	logger *zap.Logger
}

func New(root string, logger *zap.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Save writes the application's files under <root>/<container key>/. Files
// are written with a temp-and-rename so a crash never leaves a half-written
// document, and repeat saves overwrite in place.
func (s *Store) Save(ctx context.Context, app *storage.Application) (*storage.Location, error) {
	if err := storage.Validate(app); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, storage.ContainerKey(app))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create application dir %s: %w", dir, err)
	}

	for name, data := range app.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFile(filepath.Join(dir, name), data); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("application stored locally",
		zap.String("job_id", app.JobID),
		zap.String("path", dir),
		zap.Int("files", len(app.Files)),
	)

	return &storage.Location{
		Backend: "local",
		Path:    dir,
		Files:   storage.FileNames(app),
	}, nil
}

func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return nil
}
