package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileStorage keeps one file per key under a prefix directory. Writes are
// atomic (temp file + rename) so readers never observe a partial entry.
// Expired entries are unlinked lazily on Get.
type FileStorage struct {
	path   string
	prefix string
}

var _ Storage = (*FileStorage)(nil)

// DefaultFilePrefix is the subdirectory used when no prefix is configured.
const DefaultFilePrefix = "cachex"

// NewFileStorage creates a file-backed store rooted at dir/prefix. The
// directory is created on the first write.
func NewFileStorage(dir, prefix string) *FileStorage {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return &FileStorage{path: filepath.Join(dir, prefix), prefix: prefix}
}

// safeFileName maps a cache key to a filesystem-safe name. Alphanumeric
// runes pass through; every other rune is replaced with its decimal code
// point, which keeps the mapping injective.
func safeFileName(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteString(strconv.Itoa(int(r)))
		}
	}
	return b.String()
}

func (s *FileStorage) pathFromKey(key string) string {
	return filepath.Join(s.path, safeFileName(key))
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.pathFromKey(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("storage: read %s: %w", path, err)
	}

	e, err := decodeEnvelope(raw)
	if err != nil {
		// Corrupt entry: drop it and report a miss so the caller
		// recomputes instead of failing.
		_ = os.Remove(path)
		return nil, false, nil
	}
	if e.expired() {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

func (s *FileStorage) Set(_ context.Context, key string, value []byte, expiresIn time.Duration) error {
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("storage: create %s: %w", s.path, err)
	}

	raw, err := newEnvelope(value, expiresIn).encode()
	if err != nil {
		return err
	}

	target := s.pathFromKey(key)
	tmp, err := os.CreateTemp(s.path, filepath.Base(target)+".tmp*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("storage: write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("storage: rename into %s: %w", target, err)
	}
	renamed = true
	return nil
}

func (s *FileStorage) Delete(_ context.Context, key string) error {
	err := os.Remove(s.pathFromKey(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes and recreates the prefix directory.
func (s *FileStorage) DeleteAll(_ context.Context) error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("storage: remove %s: %w", s.path, err)
	}
	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return fmt.Errorf("storage: create %s: %w", s.path, err)
	}
	return nil
}

// FileFactory returns a factory producing a file-backed store rooted at
// dir/prefix.
func FileFactory(dir, prefix string) Factory {
	return Factory{
		ID: "storage.FileFactory",
		New: func() (Storage, error) {
			return NewFileStorage(dir, prefix), nil
		},
	}
}
