package usecase

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/semmidev/dbstash/internal/domain"
)

// Retention deletes remote backups older than a number of days. Only keys
// the configured KeyScheme could have produced are ever touched; anything
// else sharing the destination is left alone.
type Retention struct {
	storage       domain.Storage
	keys          KeyScheme
	ext           string
	logger        Logger
	retentionDays int
	now           func() time.Time
}

// NewRetention prunes keys of scheme ending in ext, the artifact's full
// extension chain.
func NewRetention(storage domain.Storage, keys KeyScheme, ext string, logger Logger, retentionDays int) *Retention {
	return &Retention{
		storage:       storage,
		keys:          keys,
		ext:           ext,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

func (uc *Retention) Enabled() bool {
	return uc.retentionDays > 0
}

// Execute never fails the caller on a single bad delete; it returns an error
// only when the destination cannot be listed at all.
func (uc *Retention) Execute(ctx context.Context) error {
	if !uc.Enabled() {
		return nil
	}

	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)
	uc.logger.Infow("Starting retention", "storage", uc.storage.Name(), "retention_days", uc.retentionDays)

	files, err := uc.storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		uc.logger.Warnw("Listing by modification time failed, falling back to key timestamps", "error", err)
		files, err = uc.oldFilesByKey(ctx, cutoff)
		if err != nil {
			return err
		}
	}

	deleted := 0
	for _, key := range files {
		if !uc.keys.Matches(key, uc.ext) {
			uc.logger.Debugw("Skipping object not written by this backup", "key", key)
			continue
		}
		if err := uc.storage.Delete(ctx, key); err != nil {
			uc.logger.Errorw("Failed to delete old backup", "key", key, "error", err)
			continue
		}
		uc.logger.Debugw("Deleted old backup", "key", key)
		deleted++
	}

	uc.logger.Infow("Retention completed", "storage", uc.storage.Name(), "deleted", deleted)
	return nil
}

func (uc *Retention) oldFilesByKey(ctx context.Context, cutoff time.Time) ([]string, error) {
	files, err := uc.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var oldFiles []string
	for _, key := range files {
		stamp, ok := keyTimestamp(key)
		if !ok {
			uc.logger.Debugw("No timestamp in key", "key", key)
			continue
		}
		if stamp.Before(cutoff) {
			oldFiles = append(oldFiles, key)
		}
	}
	return oldFiles, nil
}

var (
	timestampKey = regexp.MustCompile(`(\d{8}_\d{6})`)
	dailyKey     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// keyTimestamp recognises the timestamp and daily profiles. Hourly keys
// carry no month and are recycled by overwrite instead.
func keyTimestamp(key string) (time.Time, bool) {
	name := path.Base(key)
	if m := timestampKey.FindStringSubmatch(name); m != nil {
		t, err := time.Parse("20060102_150405", m[1])
		return t, err == nil
	}
	if m := dailyKey.FindStringSubmatch(name); m != nil {
		t, err := time.Parse("2006-01-02", m[1])
		return t, err == nil
	}
	return time.Time{}, false
}
