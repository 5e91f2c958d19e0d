package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/semmidev/dbstash/internal/domain"
)

// memoryStorage keeps uploaded objects in memory.
type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploads   []string
	uploadErr error

	keys    []string
	old     []string
	oldErr  error
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Name() string { return "memory://" }

func (m *memoryStorage) Upload(ctx context.Context, localPath, remoteKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, remoteKey)
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	m.objects[remoteKey] = data
	return nil
}

func (m *memoryStorage) List(ctx context.Context) ([]string, error) {
	return m.keys, nil
}

func (m *memoryStorage) Delete(ctx context.Context, remoteKey string) error {
	m.deleted = append(m.deleted, remoteKey)
	return nil
}

func (m *memoryStorage) GetOldFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	return m.old, m.oldErr
}

// fakeDumper writes a fixed payload or fails.
type fakeDumper struct {
	payload []byte
	err     error
	calls   int
	paths   []string
}

func (f *fakeDumper) Extension() string { return ".sql" }
func (f *fakeDumper) GetType() string   { return "postgresql" }

func (f *fakeDumper) Dump(ctx context.Context, targetPath string) (int64, error) {
	f.calls++
	f.paths = append(f.paths, targetPath)
	if f.err != nil {
		// Leave a partial file behind like a tool killed mid-dump.
		_ = os.WriteFile(targetPath, []byte("partial"), 0600)
		return 0, f.err
	}
	if err := os.WriteFile(targetPath, f.payload, 0600); err != nil {
		return 0, err
	}
	return int64(len(f.payload)), nil
}

var errBroken = errors.New("broken pipe")

// failingCompressor writes half an archive and gives up.
type failingCompressor struct{}

func (failingCompressor) Extension() string { return ".gz" }

func (failingCompressor) Compress(ctx context.Context, sourcePath, destPath string) error {
	_ = os.WriteFile(destPath, []byte{0x1f}, 0600)
	return errBroken
}

// blockingDumper waits until its context ends, like a dump of a huge table.
type blockingDumper struct{ fakeDumper }

func (b *blockingDumper) Dump(ctx context.Context, targetPath string) (int64, error) {
	<-ctx.Done()
	return 0, &domain.DumpError{Err: ctx.Err()}
}
