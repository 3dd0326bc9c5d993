// Package storage routes finished application documents to a destination.
// Backends share one contract: writing the same application twice must
// overwrite in place rather than duplicate.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Application is the unit a backend persists: a set of named files grouped
// under a per-job container.
type Application struct {
	JobID        string
	Company      string
	RoleCategory string
	Files        map[string][]byte
}

// Location describes where a stored application ended up, in a form the
// tracker can record.
type Location struct {
	Backend string
	Path    string
	Files   []string
}

// Store persists application documents. Save is idempotent for a given
// application key.
type Store interface {
	Save(ctx context.Context, app *Application) (*Location, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ContainerKey builds the folder name for an application. Company and role
// are sanitized so the key is safe as a file path segment on any backend.
func ContainerKey(app *Application) string {
	parts := []string{
		sanitize(app.Company),
		sanitize(app.RoleCategory),
		sanitize(app.JobID),
	}
	return strings.Join(parts, "_")
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	s = unsafeChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// FileNames returns the application's file names in a stable order.
func FileNames(app *Application) []string {
	names := make([]string, 0, len(app.Files))
	for name := range app.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate rejects applications a backend cannot key or persist.
func Validate(app *Application) error {
	if app == nil {
		return fmt.Errorf("nil application")
	}
	if app.JobID == "" {
		return fmt.Errorf("application has no job id")
	}
	if len(app.Files) == 0 {
		return fmt.Errorf("application %s has no files", app.JobID)
	}
	return nil
}
