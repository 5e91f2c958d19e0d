package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/semmidev/dbstash/internal/config"
)

type Logger interface {
	Warnw(msg string, keysAndValues ...interface{})
}

// GDriveStorage stores each object as a file in one Drive folder. The remote
// key, slashes included, becomes the file name.
type GDriveStorage struct {
	service  *drive.Service
	folderID string
	logger   Logger
}

func NewGDrive(ctx context.Context, cfg *config.GDriveConfig, logger Logger) (*GDriveStorage, error) {
	service, err := drive.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return newGDrive(service, cfg.FolderID, logger), nil
}

func newGDrive(service *drive.Service, folderID string, logger Logger) *GDriveStorage {
	return &GDriveStorage{
		service:  service,
		folderID: folderID,
		logger:   logger,
	}
}

func (g *GDriveStorage) Name() string {
	return "gdrive://" + g.folderID
}

// Upload sends the file with Drive's resumable media protocol in chunks.
// Drive allows duplicate names, so earlier files with the same name are
// removed once the new one is in place. The new file is already stored when
// that happens, so a failed removal is only logged.
func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	previous, err := g.list(ctx, g.byName(remoteName))
	if err != nil {
		return fmt.Errorf("failed to look up existing file: %w", err)
	}

	fileMetadata := &drive.File{
		Name:    remoteName,
		Parents: []string{g.folderID},
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	for _, old := range previous {
		if err := g.service.Files.Delete(old.Id).Context(ctx).Do(); err != nil {
			g.logger.Warnw("Failed to remove previous drive file",
				"name", remoteName,
				"file_id", old.Id,
				"error", err)
		}
	}

	return nil
}

func (g *GDriveStorage) query(extra string) string {
	q := fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(g.folderID))
	if extra != "" {
		q += " and " + extra
	}
	return q
}

func (g *GDriveStorage) byName(name string) string {
	return g.query(fmt.Sprintf("name='%s'", escapeQuery(name)))
}

func (g *GDriveStorage) list(ctx context.Context, q string) ([]*drive.File, error) {
	var files []*drive.File
	err := g.service.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, createdTime)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (g *GDriveStorage) List(ctx context.Context) ([]string, error) {
	files, err := g.list(ctx, g.query(""))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}

func (g *GDriveStorage) Delete(ctx context.Context, remoteName string) error {
	files, err := g.list(ctx, g.byName(remoteName))
	if err != nil {
		return fmt.Errorf("failed to find file: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("file not found: %s", remoteName)
	}

	for _, file := range files {
		if err := g.service.Files.Delete(file.Id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}

	return nil
}

func (g *GDriveStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	files, err := g.list(ctx, g.query(fmt.Sprintf("createdTime < '%s'", cutoffTime.UTC().Format(time.RFC3339))))
	if err != nil {
		return nil, fmt.Errorf("failed to list old files: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Name)
	}
	return names, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
