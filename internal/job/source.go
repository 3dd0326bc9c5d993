package job

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Source produces the batch of records a run operates on. The scraper lives
// behind this boundary; tests and manual runs use the file source.
type Source interface {
	Fetch() ([]*Record, error)
}

type fileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource reads a JSON array of records from path.
func NewFileSource(path string, logger *zap.Logger) Source {
	return &fileSource{path: path, logger: logger}
}

func (s *fileSource) Fetch() ([]*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading jobs file: %w", err)
	}

	var records []*Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing jobs file %q: %w", s.path, err)
	}

	valid := records[:0]
	for _, r := range records {
		if !r.Normalize() {
			s.logger.Warn("skipping job record with missing fields",
				zap.String("job_id", r.ID),
				zap.String("title", r.Title),
			)
			continue
		}
		valid = append(valid, r)
	}

	s.logger.Info("loaded jobs from file",
		zap.String("path", s.path),
		zap.Int("count", len(valid)),
	)

	return valid, nil
}

// StaticSource wraps an already-built batch, used for single-job runs.
type StaticSource []*Record

func (s StaticSource) Fetch() ([]*Record, error) {
	valid := make([]*Record, 0, len(s))
	for _, r := range s {
		if r.Normalize() {
			valid = append(valid, r)
		}
	}
	return valid, nil
}
