package compressor

import (
	"context"
	"io"

	"github.com/klauspost/compress/zstd"
)

type ZstdCompressor struct{}

func NewZstd() *ZstdCompressor {
	return &ZstdCompressor{}
}

func (z *ZstdCompressor) Extension() string { return ".zst" }

func (z *ZstdCompressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	return encodeFile(ctx, sourcePath, destPath, func(dst io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
}

func (z *ZstdCompressor) Decompress(ctx context.Context, sourcePath, destPath string) error {
	return decodeFile(ctx, sourcePath, destPath, func(src io.Reader) (io.ReadCloser, error) {
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	})
}
