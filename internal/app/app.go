package app

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/dbstash/internal/adapter/compressor"
	"github.com/semmidev/dbstash/internal/adapter/database"
	"github.com/semmidev/dbstash/internal/adapter/encryption"
	"github.com/semmidev/dbstash/internal/adapter/notifier"
	"github.com/semmidev/dbstash/internal/adapter/storage"
	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
	"github.com/semmidev/dbstash/internal/infrastructure/logger"
	"github.com/semmidev/dbstash/internal/infrastructure/scheduler"
	"github.com/semmidev/dbstash/internal/usecase"
)

// retentionSchedule runs pruning once a day, away from the usual backup hour.
const retentionSchedule = "0 0 3 * * *"

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	backupUC  *usecase.Backup
	retention *usecase.Retention
	notifiers []domain.Notifier
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(logger.Options{
		Level:  cfg.App.LogLevel,
		File:   cfg.App.LogFile,
		Format: cfg.App.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := build(ctx, cfg, log)
	if err != nil {
		log.Close()
		return nil, err
	}
	return a, nil
}

// stages builds the local half of the pipeline, which needs no network.
func stages(cfg *config.Config, log *logger.Logger) (domain.Dumper, domain.Compressor, domain.Sealer, error) {
	dumper, err := database.New(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize dumper: %w", err)
	}

	comp, err := compressor.New(&cfg.Backup)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize compressor: %w", err)
	}

	// zip seals with its own password; everything else goes through the sealer.
	var sealer domain.Sealer
	if cfg.Backup.PasswordProtect && cfg.Backup.Compression != "zip" {
		sealer = encryption.NewAESGCM(cfg.Backup.Password)
	}

	return dumper, comp, sealer, nil
}

// RemoteKey is the key a backup started at t would upload to.
func RemoteKey(cfg *config.Config, t time.Time) (string, error) {
	dumper, comp, sealer, err := stages(cfg, logger.Nop())
	if err != nil {
		return "", err
	}
	uc := usecase.NewBackup(dumper, comp, sealer, nil, usecase.NewKeyScheme(cfg), logger.Nop(), usecase.BackupOptions{})
	return uc.RemoteKey(t), nil
}

func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	dumper, comp, sealer, err := stages(cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var notifiers []domain.Notifier
	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram: %w", err)
		}
		notifiers = append(notifiers, tg)
	}

	keys := usecase.NewKeyScheme(cfg)
	backupUC := usecase.NewBackup(
		dumper,
		comp,
		sealer,
		store,
		keys,
		log,
		usecase.BackupOptions{
			TempDir: cfg.Backup.TempDir,
			Timeout: cfg.Backup.Timeout,
		},
	)

	log.Infow("Backup configured",
		"app", cfg.App.Name,
		"database", dumper.GetType(),
		"storage", store.Name(),
		"compression", cfg.Backup.Compression,
		"encrypted", sealer != nil,
		"profile", cfg.Backup.Profile)

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(log.SugaredLogger),
		backupUC:  backupUC,
		retention: usecase.NewRetention(store, keys, backupUC.Extension(), log, cfg.Backup.RetentionDays),
		notifiers: notifiers,
	}, nil
}

// RunOnce performs a single backup, prunes old objects after a success and
// reports the outcome.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.backup(ctx); err != nil {
		return err
	}

	if a.retention.Enabled() {
		if err := a.retention.Execute(ctx); err != nil {
			a.logger.Warnw("Retention failed", "error", err)
		}
	}
	return nil
}

func (a *App) backup(ctx context.Context) error {
	job, err := a.backupUC.Run(ctx)
	a.notify(ctx, job)
	return err
}

func (a *App) notify(ctx context.Context, job *domain.Job) {
	report := job.Report(time.Now())
	for _, n := range a.notifiers {
		if err := n.Notify(ctx, report); err != nil {
			a.logger.Warnw("Failed to send notification", "job_id", job.ID, "error", err)
		}
	}
}

// Run serves scheduled backups until ctx is cancelled. In single-shot mode
// it performs one backup and returns its error instead.
func (a *App) Run(ctx context.Context) error {
	if a.config.Schedule.SingleShot {
		a.logger.Infow("Single-shot mode, running one backup")
		return a.RunOnce(ctx)
	}

	if err := a.scheduler.AddJob("backup", a.config.Schedule.Cron, a.backup); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}
	a.logger.Infow("Scheduled backup", "cron", a.config.Schedule.Cron)

	if a.retention.Enabled() {
		if err := a.scheduler.AddJob("retention", retentionSchedule, a.retention.Execute); err != nil {
			return fmt.Errorf("failed to schedule retention: %w", err)
		}
		a.logger.Infow("Scheduled retention", "cron", retentionSchedule, "days", a.config.Backup.RetentionDays)
	}

	if a.config.Schedule.RunOnStartup {
		a.logger.Infow("Running backup on startup")
		if err := a.RunOnce(ctx); err != nil {
			a.logger.Errorw("Startup backup failed", "error", err)
		}
	}

	a.scheduler.Start()
	a.logger.Infow("Scheduler started")

	<-ctx.Done()
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infow("Shutting down")
	a.scheduler.Stop()
	a.logger.Close()
}
