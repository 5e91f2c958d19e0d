package compressor

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
)

type LZ4Compressor struct{}

func NewLZ4() *LZ4Compressor {
	return &LZ4Compressor{}
}

func (l *LZ4Compressor) Extension() string { return ".lz4" }

func (l *LZ4Compressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	return encodeFile(ctx, sourcePath, destPath, func(dst io.Writer) (io.WriteCloser, error) {
		w := lz4.NewWriter(dst)
		if err := w.Apply(lz4.CompressionLevelOption(lz4.Level9)); err != nil {
			return nil, err
		}
		return w, nil
	})
}

func (l *LZ4Compressor) Decompress(ctx context.Context, sourcePath, destPath string) error {
	return decodeFile(ctx, sourcePath, destPath, func(src io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(lz4.NewReader(src)), nil
	})
}
