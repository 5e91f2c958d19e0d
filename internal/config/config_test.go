package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/dbstash/internal/domain"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("BACKUP_DATABASE_URL", "postgres://app:secret@db:5432/app")
	t.Setenv("AWS_S3_BUCKET", "backups")
	t.Setenv("AWS_S3_REGION", "eu-central-1")
}

func fieldOf(err error) string {
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Field
	}
	return ""
}

func TestLoad(t *testing.T) {
	Convey("Given only the required environment variables", t, func() {
		setRequiredEnv(t)

		cfg, err := Load("")

		Convey("It should fill in the defaults", func() {
			So(err, ShouldBeNil)
			So(cfg.Database.Type, ShouldEqual, "postgresql")
			So(cfg.Backup.Profile, ShouldEqual, "hourly")
			So(cfg.Backup.BaseName, ShouldEqual, "backup")
			So(cfg.Backup.Compression, ShouldEqual, "none")
			So(cfg.Storage.Type, ShouldEqual, "s3")
			So(cfg.Storage.S3.MaxAttempts, ShouldEqual, 1)
			So(cfg.Storage.S3.PartSizeMB, ShouldEqual, int64(16))
			So(cfg.Schedule.Cron, ShouldEqual, "0 5 * * *")
			So(cfg.Backup.Timeout, ShouldEqual, time.Duration(0))
		})
	})

	Convey("Given the variable names of existing deployments", t, func() {
		setRequiredEnv(t)
		t.Setenv("PG_DUMP_COMMAND", "pg_dump --format=plain --no-owner")
		t.Setenv("AWS_S3_ENDPOINT", "http://minio:9000")
		t.Setenv("AWS_S3_FORCE_PATH_STYLE", "true")
		t.Setenv("BACKUP_FILE_PREFIX", "prod-")
		t.Setenv("RUN_ON_STARTUP", "true")
		t.Setenv("SINGLE_SHOT_MODE", "true")
		t.Setenv("BACKUP_TIMEOUT", "90m")

		cfg, err := Load("")

		Convey("It should map them onto the config", func() {
			So(err, ShouldBeNil)
			So(cfg.Database.DumpCommand, ShouldEqual, "pg_dump --format=plain --no-owner")
			So(cfg.Storage.S3.Endpoint, ShouldEqual, "http://minio:9000")
			So(cfg.Storage.S3.ForcePathStyle, ShouldBeTrue)
			So(cfg.Backup.FilenamePrefix, ShouldEqual, "prod-")
			So(cfg.Schedule.RunOnStartup, ShouldBeTrue)
			So(cfg.Schedule.SingleShot, ShouldBeTrue)
			So(cfg.Backup.Timeout, ShouldEqual, 90*time.Minute)
		})
	})

	Convey("Given a YAML file and an overriding environment variable", t, func() {
		setRequiredEnv(t)
		t.Setenv("BACKUP_COMPRESSION", "zstd")

		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte(`
backup:
  profile: daily
  compression: gzip
  retention_days: 14
storage:
  s3:
    prefix: nightly
`), 0600), ShouldBeNil)

		cfg, err := Load(path)

		Convey("It should read the file and let the environment win", func() {
			So(err, ShouldBeNil)
			So(cfg.Backup.Profile, ShouldEqual, "daily")
			So(cfg.Backup.RetentionDays, ShouldEqual, 14)
			So(cfg.Storage.S3.Prefix, ShouldEqual, "nightly")
			So(cfg.Backup.Compression, ShouldEqual, "zstd")
		})
	})

	Convey("Given a missing config file", t, func() {
		setRequiredEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

		Convey("It should fail to read it", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to read config")
		})
	})

	Convey("Given no database URL", t, func() {
		t.Setenv("AWS_S3_BUCKET", "backups")
		t.Setenv("AWS_S3_REGION", "eu-central-1")
		_, err := Load("")

		Convey("It should return a ConfigError", func() {
			So(fieldOf(err), ShouldEqual, "database.url")
		})
	})
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Type: "postgresql", URL: "postgres://db/app"},
		Backup:   BackupConfig{Profile: "hourly", BaseName: "backup", Compression: "none"},
		Storage: StorageConfig{
			Type: "s3",
			S3:   S3Config{Bucket: "b", Region: "r", MaxAttempts: 1, PartSizeMB: 16},
		},
		Schedule: ScheduleConfig{Cron: "0 5 * * *"},
	}
}

func TestValidate(t *testing.T) {
	Convey("Given a valid config", t, func() {
		cfg := validConfig()
		So(cfg.Validate(), ShouldBeNil)

		Convey("The postgres alias is accepted and unknown types are not", func() {
			cfg.Database.Type = "postgres"
			So(cfg.Validate(), ShouldBeNil)
			cfg.Database.Type = "oracle"
			So(fieldOf(cfg.Validate()), ShouldEqual, "database.type")
		})

		Convey("Password protection without a password is rejected", func() {
			cfg.Backup.PasswordProtect = true
			So(fieldOf(cfg.Validate()), ShouldEqual, "backup.password")
		})

		Convey("A missing region is rejected", func() {
			cfg.Storage.S3.Region = ""
			So(fieldOf(cfg.Validate()), ShouldEqual, "storage.s3.region")
		})

		Convey("Half a credential pair is rejected", func() {
			cfg.Storage.S3.AccessKey = "AKID"
			So(fieldOf(cfg.Validate()), ShouldEqual, "storage.s3.access_key")
		})

		Convey("A filename with a slash is rejected", func() {
			cfg.Backup.Filename = "../escape"
			So(fieldOf(cfg.Validate()), ShouldEqual, "backup.filename")
		})

		Convey("An unknown compression is rejected", func() {
			cfg.Backup.Compression = "rar"
			So(fieldOf(cfg.Validate()), ShouldEqual, "backup.compression")
		})

		Convey("An unknown timezone is rejected", func() {
			cfg.Backup.Timezone = "Mars/Olympus"
			So(fieldOf(cfg.Validate()), ShouldEqual, "backup.timezone")
		})

		Convey("Single-shot mode needs no cron", func() {
			cfg.Schedule.Cron = ""
			So(fieldOf(cfg.Validate()), ShouldEqual, "schedule.cron")
			cfg.Schedule.SingleShot = true
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Telegram needs a token and chat", func() {
			cfg.Notify.Telegram = TelegramConfig{Enabled: true, On: "failure"}
			So(fieldOf(cfg.Validate()), ShouldEqual, "notify.telegram")
		})

		Convey("Location should follow the timezone", func() {
			cfg.Backup.Timezone = "UTC"
			So(cfg.Location(), ShouldEqual, time.UTC)
		})
	})
}
