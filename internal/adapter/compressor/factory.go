package compressor

import (
	"fmt"

	"github.com/semmidev/dbstash/internal/config"
	"github.com/semmidev/dbstash/internal/domain"
)

// New returns the compressor selected by backup.compression, or nil for
// "none".
func New(cfg *config.BackupConfig) (domain.Compressor, error) {
	switch cfg.Compression {
	case "", "none":
		return nil, nil
	case "gzip":
		return NewGzip(), nil
	case "zstd":
		return NewZstd(), nil
	case "lz4":
		return NewLZ4(), nil
	case "zip":
		password := ""
		if cfg.PasswordProtect {
			password = cfg.Password
		}
		return NewZip(cfg.CompressionTool, password, cfg.PasswordProtect), nil
	}
	return nil, &domain.ConfigError{Field: "backup.compression", Reason: fmt.Sprintf("unsupported compression %q", cfg.Compression)}
}
