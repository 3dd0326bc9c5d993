// Package drive stores application documents in Google Drive. Each
// application gets a folder under a configured parent; documents found with
// the same name are updated rather than duplicated.
package drive

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/applypilot/applypilot/internal/storage"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Config struct {
	CredentialsFile string `mapstructure:"credentials-file"`
	ParentFolderID  string `mapstructure:"parent-folder-id"`
}

type Store struct {
	svc    *drive.Service
	parent string
	logger *zap.Logger
}

func New(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("drive storage requires a credentials file")
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Store{svc: svc, parent: cfg.ParentFolderID, logger: logger}, nil
}

// Save uploads the application's files into a per-application folder. The
// folder and any existing files are reused, so repeated saves overwrite.
func (s *Store) Save(ctx context.Context, app *storage.Application) (*storage.Location, error) {
	if err := storage.Validate(app); err != nil {
		return nil, err
	}

	key := storage.ContainerKey(app)
	folderID, err := s.ensureFolder(ctx, key)
	if err != nil {
		return nil, err
	}

	for name, data := range app.Files {
		if err := s.upload(ctx, folderID, name, data); err != nil {
			return nil, fmt.Errorf("upload %s for %s: %w", name, app.JobID, err)
		}
	}

	s.logger.Debug("application stored in drive",
		zap.String("job_id", app.JobID),
		zap.String("folder", key),
		zap.Int("files", len(app.Files)),
	)

	return &storage.Location{
		Backend: "drive",
		Path:    fmt.Sprintf("https://drive.google.com/drive/folders/%s", folderID),
		Files:   storage.FileNames(app),
	}, nil
}

func (s *Store) ensureFolder(ctx context.Context, name string) (string, error) {
	id, err := s.findChild(ctx, s.parent, name, folderMimeType)
	if err != nil {
		return "", fmt.Errorf("look up folder %s: %w", name, err)
	}
	if id != "" {
		return id, nil
	}

	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if s.parent != "" {
		meta.Parents = []string{s.parent}
	}
	created, err := s.svc.Files.Create(meta).Context(ctx).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", name, err)
	}
	return created.Id, nil
}

func (s *Store) upload(ctx context.Context, folderID, name string, data []byte) error {
	existing, err := s.findChild(ctx, folderID, name, "")
	if err != nil {
		return err
	}

	media := bytes.NewReader(data)
	if existing != "" {
		_, err = s.svc.Files.Update(existing, &drive.File{}).Media(media).Context(ctx).Do()
		return err
	}

	meta := &drive.File{Name: name, Parents: []string{folderID}}
	_, err = s.svc.Files.Create(meta).Media(media).Context(ctx).Fields("id").Do()
	return err
}

// findChild returns the id of a child with the given name, or "" when none
// exists. mimeType narrows the search when set.
func (s *Store) findChild(ctx context.Context, parentID, name, mimeType string) (string, error) {
	query := fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(name))
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}
	if mimeType != "" {
		query += fmt.Sprintf(" and mimeType = '%s'", mimeType)
	}

	list, err := s.svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == 404 {
			return "", nil
		}
		return "", err
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}

func escapeQuery(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
