package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/semmidev/dbstash/internal/domain"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`
}

type DatabaseConfig struct {
	// Type selects the dump preset: postgresql (or postgres), mysql or mongodb.
	Type        string `mapstructure:"type"`
	URL         string `mapstructure:"url"`
	DumpCommand string `mapstructure:"dump_command"`
}

type BackupConfig struct {
	Profile         string        `mapstructure:"profile"`
	BaseName        string        `mapstructure:"base_name"`
	FilenamePrefix  string        `mapstructure:"filename_prefix"`
	Filename        string        `mapstructure:"filename"`
	Extension       string        `mapstructure:"extension"`
	Compression     string        `mapstructure:"compression"`
	CompressionTool string        `mapstructure:"compression_tool"`
	PasswordProtect bool          `mapstructure:"password_protect"`
	Password        string        `mapstructure:"password"`
	TempDir         string        `mapstructure:"temp_dir"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Timezone        string        `mapstructure:"timezone"`
	RetentionDays   int           `mapstructure:"retention_days"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	S3     S3Config     `mapstructure:"s3"`
	Local  LocalConfig  `mapstructure:"local"`
	GDrive GDriveConfig `mapstructure:"gdrive"`
}

type S3Config struct {
	Bucket         string `mapstructure:"bucket"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Prefix         string `mapstructure:"prefix"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	PartSizeMB     int64  `mapstructure:"part_size_mb"`
}

type LocalConfig struct {
	Path string `mapstructure:"path"`
}

type GDriveConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
}

type ScheduleConfig struct {
	Cron         string `mapstructure:"cron"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
	SingleShot   bool   `mapstructure:"single_shot"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	// On is "failure" or "always".
	On string `mapstructure:"on"`
}

// envBindings keeps the variable names of existing deployments working.
var envBindings = map[string][]string{
	"app.log_level":                    {"LOG_LEVEL"},
	"database.type":                    {"BACKUP_DATABASE_TYPE"},
	"database.url":                     {"BACKUP_DATABASE_URL"},
	"database.dump_command":            {"BACKUP_DUMP_COMMAND", "PG_DUMP_COMMAND"},
	"backup.profile":                   {"BACKUP_KEY_PROFILE"},
	"backup.filename_prefix":           {"BACKUP_FILE_PREFIX"},
	"backup.filename":                  {"BACKUP_FILENAME"},
	"backup.compression":               {"BACKUP_COMPRESSION"},
	"backup.password_protect":          {"BACKUP_PASSWORD_PROTECT"},
	"backup.password":                  {"BACKUP_PASSWORD"},
	"backup.temp_dir":                  {"BACKUP_TEMP_DIR"},
	"backup.timeout":                   {"BACKUP_TIMEOUT"},
	"backup.timezone":                  {"BACKUP_TIMEZONE"},
	"backup.retention_days":            {"BACKUP_RETENTION_DAYS"},
	"storage.type":                     {"BACKUP_STORAGE"},
	"storage.s3.bucket":                {"AWS_S3_BUCKET"},
	"storage.s3.region":                {"AWS_S3_REGION"},
	"storage.s3.endpoint":              {"AWS_S3_ENDPOINT"},
	"storage.s3.force_path_style":      {"AWS_S3_FORCE_PATH_STYLE"},
	"storage.s3.access_key":            {"AWS_ACCESS_KEY_ID"},
	"storage.s3.secret_key":            {"AWS_SECRET_ACCESS_KEY"},
	"storage.s3.prefix":                {"AWS_S3_PREFIX"},
	"storage.s3.max_attempts":          {"AWS_S3_MAX_ATTEMPTS"},
	"storage.local.path":               {"BACKUP_LOCAL_PATH"},
	"storage.gdrive.credentials_file":  {"GDRIVE_CREDENTIALS_FILE"},
	"storage.gdrive.folder_id":         {"GDRIVE_FOLDER_ID"},
	"schedule.cron":                    {"BACKUP_CRON_SCHEDULE"},
	"schedule.run_on_startup":          {"RUN_ON_STARTUP"},
	"schedule.single_shot":             {"SINGLE_SHOT_MODE"},
	"notify.telegram.enabled":          {"TELEGRAM_ENABLED"},
	"notify.telegram.bot_token":        {"TELEGRAM_BOT_TOKEN"},
	"notify.telegram.chat_id":          {"TELEGRAM_CHAT_ID"},
	"notify.telegram.on":               {"TELEGRAM_NOTIFY_ON"},
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "dbstash")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")
	v.SetDefault("database.type", "postgresql")
	v.SetDefault("backup.profile", "hourly")
	v.SetDefault("backup.base_name", "backup")
	v.SetDefault("backup.compression", "none")
	v.SetDefault("backup.compression_tool", "zip")
	v.SetDefault("backup.timeout", 0)
	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.s3.max_attempts", 1)
	v.SetDefault("storage.s3.part_size_mb", 16)
	v.SetDefault("schedule.cron", "0 5 * * *")
	v.SetDefault("notify.telegram.on", "failure")

	v.SetEnvPrefix("DBSTASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		args := append([]string{key, "DBSTASH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that cannot produce a backup. It runs
// before anything is spawned.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return &domain.ConfigError{Field: "database.url", Reason: "is required"}
	}

	switch c.Database.Type {
	case "postgresql", "postgres", "mysql", "mongodb":
	default:
		return &domain.ConfigError{Field: "database.type", Reason: fmt.Sprintf("unsupported type %q", c.Database.Type)}
	}

	switch c.Backup.Profile {
	case "hourly", "daily", "timestamp":
	default:
		return &domain.ConfigError{Field: "backup.profile", Reason: fmt.Sprintf("unknown profile %q", c.Backup.Profile)}
	}

	if c.Backup.BaseName == "" && c.Backup.Filename == "" {
		return &domain.ConfigError{Field: "backup.base_name", Reason: "is required when backup.filename is empty"}
	}
	if strings.Contains(c.Backup.Filename, "/") || strings.Contains(c.Backup.FilenamePrefix, "/") {
		return &domain.ConfigError{Field: "backup.filename", Reason: "must not contain path separators"}
	}

	switch c.Backup.Compression {
	case "none", "gzip", "zstd", "lz4", "zip":
	default:
		return &domain.ConfigError{Field: "backup.compression", Reason: fmt.Sprintf("unsupported compression %q", c.Backup.Compression)}
	}

	if c.Backup.PasswordProtect && c.Backup.Password == "" {
		return &domain.ConfigError{Field: "backup.password", Reason: "is required when backup.password_protect is set"}
	}

	if c.Backup.Timeout < 0 {
		return &domain.ConfigError{Field: "backup.timeout", Reason: "must not be negative"}
	}

	if c.Backup.Timezone != "" {
		if _, err := time.LoadLocation(c.Backup.Timezone); err != nil {
			return &domain.ConfigError{Field: "backup.timezone", Reason: err.Error()}
		}
	}

	if c.Backup.RetentionDays < 0 {
		return &domain.ConfigError{Field: "backup.retention_days", Reason: "must not be negative"}
	}

	switch c.Storage.Type {
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return &domain.ConfigError{Field: "storage.s3.bucket", Reason: "is required"}
		}
		if c.Storage.S3.Region == "" {
			return &domain.ConfigError{Field: "storage.s3.region", Reason: "is required"}
		}
		if (c.Storage.S3.AccessKey == "") != (c.Storage.S3.SecretKey == "") {
			return &domain.ConfigError{Field: "storage.s3.access_key", Reason: "access key and secret key must be set together"}
		}
		if c.Storage.S3.MaxAttempts < 1 {
			return &domain.ConfigError{Field: "storage.s3.max_attempts", Reason: "must be at least 1"}
		}
		if c.Storage.S3.PartSizeMB < 5 {
			return &domain.ConfigError{Field: "storage.s3.part_size_mb", Reason: "must be at least 5"}
		}
	case "local":
		if c.Storage.Local.Path == "" {
			return &domain.ConfigError{Field: "storage.local.path", Reason: "is required"}
		}
	case "gdrive":
		if c.Storage.GDrive.CredentialsFile == "" {
			return &domain.ConfigError{Field: "storage.gdrive.credentials_file", Reason: "is required"}
		}
		if c.Storage.GDrive.FolderID == "" {
			return &domain.ConfigError{Field: "storage.gdrive.folder_id", Reason: "is required"}
		}
	default:
		return &domain.ConfigError{Field: "storage.type", Reason: fmt.Sprintf("unsupported storage %q", c.Storage.Type)}
	}

	if !c.Schedule.SingleShot && c.Schedule.Cron == "" {
		return &domain.ConfigError{Field: "schedule.cron", Reason: "is required unless single_shot is set"}
	}

	if t := c.Notify.Telegram; t.Enabled {
		if t.BotToken == "" || t.ChatID == 0 {
			return &domain.ConfigError{Field: "notify.telegram", Reason: "bot_token and chat_id are required when enabled"}
		}
		if t.On != "failure" && t.On != "always" {
			return &domain.ConfigError{Field: "notify.telegram.on", Reason: fmt.Sprintf("must be failure or always, got %q", t.On)}
		}
	}

	return nil
}

// Location returns the zone used for key timestamps.
func (c *Config) Location() *time.Location {
	if c.Backup.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Backup.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
