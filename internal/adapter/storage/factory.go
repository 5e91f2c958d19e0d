package storage

import (
	"context"
	"fmt"

	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

// New builds the single destination selected by storage.type.
func New(ctx context.Context, cfg *config.StorageConfig, logger Logger) (domain.Storage, error) {
	switch cfg.Type {
	case "s3", "":
		s, err := NewS3(ctx, &cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "local":
		s, err := NewLocal(cfg.Local.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "gdrive":
		s, err := NewGDrive(ctx, &cfg.GDrive, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, &domain.ConfigError{Field: "storage.type", Reason: fmt.Sprintf("unsupported storage %q", cfg.Type)}
}
