package progress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Backend reads and writes the single slot holding the serialized mapping.
// Load returns nil data and no error when the slot does not exist yet.
type Backend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// MemoryBackend keeps the slot in memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
	// LoadErr and SaveErr, when set, are returned instead of touching the slot.
	LoadErr error
	SaveErr error
	saves   int
}

// NewMemoryBackend creates an empty in-memory slot.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// NewMemoryBackendWith creates an in-memory slot holding data.
func NewMemoryBackendWith(data []byte) *MemoryBackend {
	return &MemoryBackend{data: append([]byte(nil), data...)}
}

func (b *MemoryBackend) Load(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	if b.data == nil {
		return nil, nil
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Save(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SaveErr != nil {
		return b.SaveErr
	}
	b.data = append([]byte(nil), data...)
	b.saves++
	return nil
}

// Bytes returns the current slot contents.
func (b *MemoryBackend) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...)
}

// Saves returns the number of successful writes.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// FileBackend stores the slot as one JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend creates a file-backed slot at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return data, nil
}

// Save writes through a temp file and rename, so readers never see a partial slot.
func (b *FileBackend) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("rename to %s: %w", b.path, err)
	}
	return nil
}

// FallbackBackend keeps the slot in memory when the configured backend could
// not be opened. HealthCheck keeps reporting the original failure.
type FallbackBackend struct {
	*MemoryBackend
	cause error
}

// NewFallbackBackend creates an empty in-memory slot that reports cause as
// unhealthy.
func NewFallbackBackend(cause error) *FallbackBackend {
	return &FallbackBackend{MemoryBackend: NewMemoryBackend(), cause: cause}
}

func (b *FallbackBackend) HealthCheck(_ context.Context) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, b.cause)
}
