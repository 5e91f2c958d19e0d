package compressor

import (
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
)

type GzipCompressor struct {
	level int
}

func NewGzip() *GzipCompressor {
	return &GzipCompressor{level: gzip.BestCompression}
}

func (g *GzipCompressor) Extension() string { return ".gz" }

func (g *GzipCompressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	return encodeFile(ctx, sourcePath, destPath, func(dst io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriterLevel(dst, g.level)
	})
}

func (g *GzipCompressor) Decompress(ctx context.Context, sourcePath, destPath string) error {
	return decodeFile(ctx, sourcePath, destPath, func(src io.Reader) (io.ReadCloser, error) {
		return gzip.NewReader(src)
	})
}
