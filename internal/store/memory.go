package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xabinapal/dabrowser/internal/profile"
)

// ErrInjected is the error a failing MemoryStore returns.
var ErrInjected = errors.New("injected save failure")

// MemoryStore keeps the profile set in memory. It is meant for tests.
type MemoryStore struct {
	writer  sync.Mutex
	mu      sync.Mutex
	set     *profile.Set
	saves   int
	failing bool
}

// NewMemoryStore returns a store preloaded with profiles.
func NewMemoryStore(profiles ...profile.Profile) *MemoryStore {
	return &MemoryStore{set: profile.NewSet(profiles...)}
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context) (*profile.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, set *profile.Set) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("%w: %w", ErrPersistence, ErrInjected)
	}
	m.saves++
	m.set = set.Clone()
	return nil
}

// Lock implements profile.Locker for registries sharing one MemoryStore.
func (m *MemoryStore) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.writer.Lock()
	return m.writer.Unlock, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

// SetFailing makes subsequent saves fail.
func (m *MemoryStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Snapshot returns the last saved profiles in order.
func (m *MemoryStore) Snapshot() []profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.List()
}
