package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/logging"
)

var errCorruptDocument = errors.New("vault document is corrupt")

// FileBackend keeps every domain in one JSON document of the form
// {domain: {label: ciphertext}}.
type FileBackend struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFileBackend(path string, logger *zap.Logger) (*FileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("vault data path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	return &FileBackend{path: path, logger: logging.OrNop(logger)}, nil
}

func (b *FileBackend) Name() string {
	return "file"
}

func (b *FileBackend) Put(ctx context.Context, domain string, sealed map[string]string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readLocked()
	switch {
	case errors.Is(err, errCorruptDocument):
		if err := b.quarantineLocked(err); err != nil {
			return err
		}
		doc = make(map[string]map[string]string)
	case err != nil:
		return err
	}
	doc[domain] = cloneValues(sealed)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode vault document: %w", err)
	}
	return writeFileAtomic(b.path, raw, 0o600)
}

func (b *FileBackend) Fetch(ctx context.Context, domain string) (map[string]string, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.readLocked()
	if err != nil {
		return nil, false, err
	}
	found, ok := doc[domain]
	if !ok || len(found) == 0 {
		return nil, false, nil
	}
	return cloneValues(found), true, nil
}

func (b *FileBackend) readLocked() (map[string]map[string]string, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]map[string]string), nil
		}
		return nil, fmt.Errorf("read vault document: %w", err)
	}
	doc := make(map[string]map[string]string)
	if len(strings.TrimSpace(string(raw))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptDocument, err)
	}
	return doc, nil
}

// quarantineLocked moves an undecodable document aside so a new one can be
// started without destroying what was there.
func (b *FileBackend) quarantineLocked(cause error) error {
	aside := b.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(b.path, aside); err != nil {
		return fmt.Errorf("move corrupt vault document aside: %w", err)
	}
	b.logger.Warn("vault document was corrupt; moved aside and starting a new one",
		zap.String("path", b.path),
		zap.String("moved_to", aside),
		zap.Error(cause),
	)
	return nil
}

// MemoryBackend keeps sealed values in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]map[string]string)}
}

func (b *MemoryBackend) Name() string {
	return "memory"
}

func (b *MemoryBackend) Put(_ context.Context, domain string, sealed map[string]string) error {
	b.mu.Lock()
	b.items[domain] = cloneValues(sealed)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackend) Fetch(_ context.Context, domain string) (map[string]string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	found, ok := b.items[domain]
	if !ok {
		return nil, false, nil
	}
	return cloneValues(found), true, nil
}

func cloneValues(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for key, value := range src {
		out[key] = value
	}
	return out
}
