// Package tracker records one row per examined job in a CSV log. The log is
// the human-facing audit trail: every job the pipeline touches ends up here
// exactly once, with later runs updating the existing row in place.
package tracker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/applypilot/applypilot/internal/job"
)

// ErrTrack marks a failure to persist an outcome row. The pipeline treats
// this as fatal for the run because a silent gap in the log defeats its
// purpose.
var ErrTrack = errors.New("outcome tracking failed")

var columns = []string{
	"JobID",
	"Title",
	"Company",
	"RoleCategory",
	"RoleVariation",
	"Link",
	"FitScore",
	"DateSaved",
	"Status",
	"FolderPath",
	"Notes",
}

// Tracker appends and updates rows in a CSV file. All methods are safe for
// concurrent use; the file is rewritten atomically on every record so a
// crash never corrupts it.
type Tracker struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

func New(path string, logger *zap.Logger) (*Tracker, error) {
	if path == "" {
		return nil, fmt.Errorf("tracker path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create tracker dir %s: %w", dir, err)
		}
	}
	return &Tracker{path: path, logger: logger}, nil
}

// Record writes the outcome for a job. When a row with the same JobID
// already exists it is replaced, so re-running over the same posting never
// produces duplicate rows.
func (t *Tracker) Record(outcome *job.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.load()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrack, err)
	}

	row := buildRow(outcome)
	replaced := false
	for i, existing := range rows {
		if len(existing) > 0 && existing[0] == outcome.JobID {
			rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, row)
	}

	if err := t.flush(rows); err != nil {
		return fmt.Errorf("%w: %w", ErrTrack, err)
	}

	t.logger.Debug("outcome recorded",
		zap.String("job_id", outcome.JobID),
		zap.String("status", string(outcome.Status)),
		zap.Bool("updated", replaced),
	)
	return nil
}

// load reads all data rows, skipping the header. A missing file is an empty
// tracker, not an error.
func (t *Tracker) load() ([][]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", t.path, err)
	}
	if len(all) > 0 && len(all[0]) > 0 && all[0][0] == columns[0] {
		all = all[1:]
	}
	return all, nil
}

func (t *Tracker) flush(rows [][]string) error {
	tmp := t.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(columns); err == nil {
		err = writer.WriteAll(rows)
	}
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", t.path, err)
	}
	return nil
}

func buildRow(outcome *job.Outcome) []string {
	score := ""
	if outcome.HasScore {
		score = strconv.FormatFloat(outcome.FitScore, 'f', 1, 64)
	}
	saved := outcome.Timestamp
	if saved.IsZero() {
		saved = time.Now()
	}

	parts := make([]string, 0, 3)
	if outcome.Reason != "" {
		parts = append(parts, outcome.Reason)
	}
	if outcome.Notes != "" {
		parts = append(parts, outcome.Notes)
	}
	// Scored rows carry the threshold that was active at scoring time, so the
	// log stays interpretable after the threshold changes. The low-fit reason
	// already names it.
	if outcome.HasScore && !strings.HasPrefix(outcome.Reason, "fit<") {
		parts = append(parts, "threshold="+strconv.FormatFloat(outcome.Threshold, 'f', 1, 64))
	}
	notes := strings.Join(parts, "; ")

	return []string{
		outcome.JobID,
		outcome.Title,
		outcome.Company,
		outcome.RoleCategory,
		outcome.RoleVariation,
		outcome.Link,
		score,
		saved.Format("2006-01-02"),
		string(outcome.Status),
		outcome.FolderPath,
		notes,
	}
}
