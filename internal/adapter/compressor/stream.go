package compressor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/semmidev/dbstash/internal/domain"
)

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

type encoderFunc func(dst io.Writer) (io.WriteCloser, error)

type decoderFunc func(src io.Reader) (io.ReadCloser, error)

// encodeFile streams sourcePath through the encoder into destPath.
func encodeFile(ctx context.Context, sourcePath, destPath string, newEncoder encoderFunc) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to open source file: %w", err)}
	}
	defer sourceFile.Close()

	destFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to create dest file: %w", err)}
	}
	defer destFile.Close()

	enc, err := newEncoder(destFile)
	if err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to create encoder: %w", err)}
	}

	if _, err := io.Copy(enc, ctxReader{ctx: ctx, r: sourceFile}); err != nil {
		_ = enc.Close()
		return &domain.CompressError{Err: fmt.Errorf("failed to compress: %w", err)}
	}
	if err := enc.Close(); err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to finish compression: %w", err)}
	}
	if err := destFile.Close(); err != nil {
		return &domain.CompressError{Err: fmt.Errorf("failed to close dest file: %w", err)}
	}

	return nil
}

func decodeFile(ctx context.Context, sourcePath, destPath string, newDecoder decoderFunc) error {
	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	dec, err := newDecoder(sourceFile)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	defer dec.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, ctxReader{ctx: ctx, r: dec}); err != nil {
		return fmt.Errorf("failed to decompress: %w", err)
	}

	return destFile.Close()
}
