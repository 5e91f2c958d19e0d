package domain

import "context"

// Dumper materializes a full snapshot of the database at targetPath and
// returns the size of the written file.
type Dumper interface {
	Dump(ctx context.Context, targetPath string) (int64, error)
	Extension() string
	GetType() string
}
