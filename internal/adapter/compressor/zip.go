package compressor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/semmidev/dbstash/internal/domain"
)

// ZipCompressor shells out to an external zip utility, invoked as
// `tool -q -j [-P password] output input`.
type ZipCompressor struct {
	tool            string
	password        string
	requirePassword bool
}

func NewZip(tool, password string, requirePassword bool) *ZipCompressor {
	if tool == "" {
		tool = "zip"
	}
	return &ZipCompressor{tool: tool, password: password, requirePassword: requirePassword}
}

func (z *ZipCompressor) Extension() string { return ".zip" }

func (z *ZipCompressor) Preflight() error {
	if z.requirePassword && z.password == "" {
		return &domain.ConfigError{Field: "backup.password", Reason: "password protected zip requested but no password is set"}
	}
	return nil
}

func (z *ZipCompressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	if err := z.Preflight(); err != nil {
		return err
	}

	args := []string{"-q", "-j"}
	if z.password != "" {
		args = append(args, "-P", z.password)
	}
	args = append(args, destPath, sourcePath)

	cmd := exec.CommandContext(ctx, z.tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		compressErr := &domain.CompressError{Stderr: strings.TrimSpace(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			compressErr.ExitCode = exitErr.ExitCode()
		}
		return compressErr
	}

	return nil
}
