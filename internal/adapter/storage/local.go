package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage treats a directory as a bucket. Keys may contain slashes,
// which become subdirectories.
type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) Name() string {
	return "file://" + l.basePath
}

// Upload copies into a temporary sibling and renames it, so a failed copy
// never leaves a partial object under remoteName.
func (l *LocalStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	destPath := l.GetPath(remoteName)

	source, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer source.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create dest directory: %w", err)
	}

	partPath := destPath + ".part"
	dest, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create dest: %w", err)
	}

	_, copyErr := io.Copy(dest, readerWithContext(ctx, source))
	closeErr := dest.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(partPath)
		if copyErr != nil {
			return fmt.Errorf("failed to copy: %w", copyErr)
		}
		return fmt.Errorf("failed to close dest: %w", closeErr)
	}

	if err := os.Rename(partPath, destPath); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("failed to finalize dest: %w", err)
	}

	return nil
}

func (l *LocalStorage) walk(fn func(key string, info fs.FileInfo) error) error {
	return filepath.WalkDir(l.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".part") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", d.Name(), err)
		}
		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), info)
	})
}

func (l *LocalStorage) List(ctx context.Context) ([]string, error) {
	var files []string
	err := l.walk(func(key string, _ fs.FileInfo) error {
		files = append(files, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	return files, nil
}

func (l *LocalStorage) Delete(ctx context.Context, remoteName string) error {
	if err := os.Remove(l.GetPath(remoteName)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	var oldFiles []string
	err := l.walk(func(key string, info fs.FileInfo) error {
		if info.ModTime().Before(cutoffTime) {
			oldFiles = append(oldFiles, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	return oldFiles, nil
}

func (l *LocalStorage) GetPath(remoteName string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(remoteName))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
