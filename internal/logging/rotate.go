package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// keepRotated is how many rotated log files survive cleanup.
const keepRotated = 5

// rotatingFile is an append-only log file that is renamed aside once it
// grows past maxSize.
type rotatingFile struct {
	mu          sync.Mutex
	path        string
	maxSize     int64
	currentSize int64
	file        *os.File
}

func openRotatingFile(path string, maxSize int64) (*rotatingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	r := &rotatingFile{path: path, maxSize: maxSize, file: f}
	if info, err := f.Stat(); err == nil {
		r.currentSize = info.Size()
	}
	return r, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize > 0 && r.currentSize+int64(len(p)) > r.maxSize && r.currentSize > 0 {
		r.rotate()
	}
	if r.file == nil {
		return os.Stderr.Write(p)
	}

	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *rotatingFile) rotate() {
	_ = r.file.Close()

	// Nanoseconds keep names unique when several rotations happen within a second.
	rotated := r.path + "." + time.Now().Format("20060102-150405.000000000")
	_ = os.Rename(r.path, rotated)

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		// Fall back to stderr
		r.file = nil
		return
	}
	r.file = f
	r.currentSize = 0

	r.cleanup()
}

func (r *rotatingFile) cleanup() {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= keepRotated {
		return
	}

	// Timestamps sort lexically, oldest first.
	sort.Strings(matches)
	for _, old := range matches[:len(matches)-keepRotated] {
		_ = os.Remove(old)
	}
}
