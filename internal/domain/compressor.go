package domain

import "context"

// Compressor rewrites a dump into an archive at destPath. It never removes
// sourcePath.
type Compressor interface {
	Compress(ctx context.Context, sourcePath, destPath string) error
	Extension() string
}

type Decompressor interface {
	Decompress(ctx context.Context, sourcePath, destPath string) error
}

// Sealer password-protects an artifact after compression.
type Sealer interface {
	Seal(ctx context.Context, sourcePath, destPath string) error
	Extension() string
}

// Preflighter is implemented by stages that can reject their configuration
// before any subprocess is spawned.
type Preflighter interface {
	Preflight() error
}
