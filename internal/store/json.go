package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xabinapal/dabrowser/internal/profile"
)

// JSONFileStore keeps the profile set in a single indented JSON document.
// Saves replace the file atomically.
type JSONFileStore struct {
	mu   sync.Mutex
	path string
	opts options
}

// NewJSONFileStore returns a store backed by the file at path.
func NewJSONFileStore(path string, opts ...Option) *JSONFileStore {
	return &JSONFileStore{path: path, opts: buildOptions(opts)}
}

// Path returns the backing file path.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Lock implements profile.Locker with a lock file beside the store.
func (s *JSONFileStore) Lock(ctx context.Context) (func(), error) {
	return lockFile(ctx, lockPath(s.path))
}

// Load implements Store.
func (s *JSONFileStore) Load(ctx context.Context) (*profile.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.opts.log.WithField("path", s.path)

	// #nosec G304 - path is the configured profile store location
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("cannot read profile store, starting empty")
		}
		return profile.NewSet(), nil
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return profile.NewSet(), nil
	}

	set := profile.NewSet()
	if err := json.Unmarshal(data, set); err != nil {
		aside := s.quarantine()
		log.WithError(err).WithField("moved_to", aside).Warn("profile store is corrupt, starting empty")
		return profile.NewSet(), nil
	}

	warnInvalid(log, set)
	return set, nil
}

// quarantine renames the current file aside so a later save cannot overwrite
// it. It returns the new name, or an empty string if the rename failed.
func (s *JSONFileStore) quarantine() string {
	aside := fmt.Sprintf("%s.corrupt-%s", s.path, s.opts.now().UTC().Format("20060102T150405.000000000Z"))
	if err := os.Rename(s.path, aside); err != nil {
		s.opts.log.WithError(err).Warn("cannot move corrupt profile store aside")
		return ""
	}
	return aside
}

// Save implements Store. It writes a temporary file in the same directory,
// syncs it, and renames it over the target.
func (s *JSONFileStore) Save(ctx context.Context, set *profile.Set) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	data, err := json.MarshalIndent(set, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistence, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Close implements Store.
func (s *JSONFileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return nil
}
