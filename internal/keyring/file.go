package keyring

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xabinapal/dabrowser/internal/utils"
)

// FileStore keeps secrets as files in a directory. It exists for tests and
// must never be used in production.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("directory path is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// IsAvailable implements Store.
func (f *FileStore) IsAvailable() error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("%w: directory not accessible: %v", ErrKeyringUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: path is not a directory", ErrKeyringUnavailable)
	}
	return nil
}

// keyPath maps a key to a file that is guaranteed to live inside the store directory.
func (f *FileStore) keyPath(key string) (string, error) {
	fullPath := filepath.Join(f.dir, utils.SanitizeKey(key))

	absDir, err := filepath.Abs(f.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: path traversal detected")
	}

	return fullPath, nil
}

// Set implements Store.
func (f *FileStore) Set(key, secret string) error {
	if key == "" {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}

	// Remove first so O_EXCL never follows a planted symlink.
	_ = os.Remove(path)

	// #nosec G304 - path is built by keyPath inside the store directory
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(secret); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return nil
}

// Get implements Store.
func (f *FileStore) Get(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyPath(key)
	if err != nil {
		return "", err
	}

	// #nosec G304 - path is built by keyPath inside the store directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(data), nil
}

// Delete implements Store.
func (f *FileStore) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
