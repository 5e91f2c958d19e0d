package domain

import (
	"context"
	"time"
)

type Storage interface {
	Upload(ctx context.Context, localPath string, remoteKey string) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, remoteKey string) error
	GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error)
	Name() string
}

type Notifier interface {
	Notify(ctx context.Context, report Report) error
}
