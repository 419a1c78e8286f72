// FILE: lixenwraith/classconfig/internal/cache/file.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps one msgpack file per key under a directory.
// Thread-safe for concurrent access.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// DefaultDir returns the per-user cache directory of app
func DefaultDir(app string) (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, app), nil
}

// OpenFileStore creates dir if needed and returns a store rooted there
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, "resolved", hex.EncodeToString(sum[:])+".mp")
}

// Get reads the config stored under key
func (s *FileStore) Get(key string) (map[string]any, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return decodeEntry(key, data)
}

// Put writes cfg under key, replacing the file atomically
func (s *FileStore) Put(key string, cfg map[string]any) error {
	if s == nil {
		return nil
	}
	data, err := encodeEntry(key, cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// DropAll removes every stored entry
func (s *FileStore) DropAll() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved := filepath.Join(s.dir, "resolved")
	old := resolved + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(resolved, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// Close is a no-op; files are closed after each operation
func (s *FileStore) Close() error {
	return nil
}
