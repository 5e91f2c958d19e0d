package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/semmidev/dbstash/internal/domain"
)

type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

// Backup runs dump, compress, seal and upload in sequence for one job. A
// failing stage stops the pipeline; local artifacts are removed either way.
type Backup struct {
	dumper     domain.Dumper
	compressor domain.Compressor
	sealer     domain.Sealer
	storage    domain.Storage
	keys       KeyScheme
	cleaner    *Cleaner
	logger     Logger

	tempDir string
	timeout time.Duration

	now   func() time.Time
	newID func() string
}

type BackupOptions struct {
	// TempDir is the parent of per-job work directories; empty means the
	// system default.
	TempDir string
	// Timeout bounds the whole job. Zero means no deadline.
	Timeout time.Duration
}

// NewBackup wires the stages. compressor and sealer may be nil.
func NewBackup(
	dumper domain.Dumper,
	compressor domain.Compressor,
	sealer domain.Sealer,
	storage domain.Storage,
	keys KeyScheme,
	logger Logger,
	opts BackupOptions,
) *Backup {
	return &Backup{
		dumper:     dumper,
		compressor: compressor,
		sealer:     sealer,
		storage:    storage,
		keys:       keys,
		cleaner:    NewCleaner(logger),
		logger:     logger,
		tempDir:    opts.TempDir,
		timeout:    opts.Timeout,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (uc *Backup) Execute(ctx context.Context) error {
	_, err := uc.Run(ctx)
	return err
}

// Extension is the full suffix chain of the uploaded artifact.
func (uc *Backup) Extension() string {
	ext := uc.dumper.Extension()
	if uc.compressor != nil {
		ext += uc.compressor.Extension()
	}
	if uc.sealer != nil {
		ext += uc.sealer.Extension()
	}
	return ext
}

// RemoteKey is the key a job started at t uploads to.
func (uc *Backup) RemoteKey(t time.Time) string {
	return uc.keys.RemoteKey(t, uc.Extension())
}

// Run executes one job and returns it with its outcome filled in. The
// returned error is the outcome's error.
func (uc *Backup) Run(ctx context.Context) (*domain.Job, error) {
	job := domain.NewJob(uc.newID(), uc.now())

	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	uc.logger.Infow("Starting backup", "job_id", job.ID, "database", uc.dumper.GetType(), "storage", uc.storage.Name())

	uc.run(ctx, job)

	if warnings := uc.cleaner.Cleanup(job); len(warnings) > 0 {
		uc.logger.Warnw("Cleanup left files behind", "job_id", job.ID, "count", len(warnings))
	}

	if job.Failed() {
		uc.logger.Errorw("Backup failed", "job_id", job.ID, "stage", job.Outcome.Stage, "error", job.Outcome.Err)
		return job, job.Outcome.Err
	}

	uc.logger.Infow("Backup completed",
		"job_id", job.ID,
		"key", job.RemoteKey,
		"size", formatSize(job.Size),
		"duration", uc.now().Sub(job.StartedAt).Round(time.Second))
	return job, nil
}

func (uc *Backup) run(ctx context.Context, job *domain.Job) {
	if err := uc.preflight(); err != nil {
		job.Fail(domain.StageConfig, err)
		return
	}

	workDir, err := os.MkdirTemp(uc.tempDir, "dbstash-*")
	if err != nil {
		job.Fail(domain.StageDump, &domain.DumpError{Err: fmt.Errorf("failed to create work dir: %w", err)})
		return
	}
	job.WorkDir = workDir
	job.Track(workDir)

	job.FileName = uc.keys.FileName(job.StartedAt, uc.dumper.Extension())
	current := filepath.Join(workDir, job.FileName)

	job.Track(current)
	uc.logger.Infow("Dumping database", "job_id", job.ID, "stage", domain.StageDump, "path", current)
	size, err := uc.dumper.Dump(ctx, current)
	if err != nil {
		job.Fail(domain.StageDump, err)
		return
	}
	uc.logger.Infow("Dump created", "job_id", job.ID, "size", formatSize(size))

	if uc.compressor != nil {
		dest := current + uc.compressor.Extension()
		job.Track(dest)
		uc.logger.Infow("Compressing backup", "job_id", job.ID, "stage", domain.StageCompress, "path", dest)
		if err := uc.compressor.Compress(ctx, current, dest); err != nil {
			job.Fail(domain.StageCompress, asCompressError(err))
			return
		}
		current = dest
	}

	if uc.sealer != nil {
		dest := current + uc.sealer.Extension()
		job.Track(dest)
		uc.logger.Infow("Encrypting backup", "job_id", job.ID, "stage", domain.StageCompress, "path", dest)
		if err := uc.sealer.Seal(ctx, current, dest); err != nil {
			job.Fail(domain.StageCompress, asCompressError(err))
			return
		}
		current = dest
	}

	info, err := os.Stat(current)
	if err != nil {
		job.Fail(domain.StageCompress, &domain.CompressError{Err: fmt.Errorf("failed to stat artifact: %w", err)})
		return
	}

	key := uc.keys.RemoteKey(job.StartedAt, uc.Extension())
	uc.logger.Infow("Uploading backup", "job_id", job.ID, "stage", domain.StageUpload, "key", key, "size", formatSize(info.Size()))
	if err := uc.storage.Upload(ctx, current, key); err != nil {
		var uploadErr *domain.UploadError
		if !errors.As(err, &uploadErr) {
			err = &domain.UploadError{Key: key, Err: err}
		}
		job.Fail(domain.StageUpload, err)
		return
	}

	job.RemoteKey = key
	job.Size = info.Size()
	job.Succeed()
}

// preflight lets stages reject their settings before the dump is spawned.
func (uc *Backup) preflight() error {
	stages := []interface{}{uc.dumper, uc.compressor, uc.sealer}
	for _, s := range stages {
		if p, ok := s.(domain.Preflighter); ok {
			if err := p.Preflight(); err != nil {
				return err
			}
		}
	}
	return nil
}

func asCompressError(err error) error {
	var compressErr *domain.CompressError
	var cfgErr *domain.ConfigError
	if errors.As(err, &compressErr) || errors.As(err, &cfgErr) {
		return err
	}
	return &domain.CompressError{Err: err}
}

func formatSize(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
