package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xabinapal/dabrowser/internal/keyring"
	"github.com/xabinapal/dabrowser/internal/profile"
)

// SecretStore keeps proxy passwords in a keyring and persists profiles
// through an inner store with the password field blanked.
type SecretStore struct {
	inner   Store
	secrets keyring.Store
	opts    options

	mu sync.Mutex
	// stored holds the ids whose secret was read from or written to the
	// keyring. Only those are deleted when their password becomes empty.
	stored map[string]bool
}

// NewSecretStore wraps inner so passwords live in secrets.
func NewSecretStore(inner Store, secrets keyring.Store, opts ...Option) *SecretStore {
	return &SecretStore{
		inner:   inner,
		secrets: secrets,
		opts:    buildOptions(opts),
		stored:  make(map[string]bool),
	}
}

// Load implements Store. Passwords still present in the inner store, for
// example after switching backends, are kept as-is.
func (s *SecretStore) Load(ctx context.Context) (*profile.Set, error) {
	set, err := s.inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := profile.NewSet()
	for _, p := range set.List() {
		if p.Proxy.Password == "" {
			secret, err := s.secrets.Get(p.ID)
			switch {
			case err == nil:
				p.Proxy.Password = secret
				s.stored[p.ID] = true
			case errors.Is(err, keyring.ErrSecretNotFound):
				delete(s.stored, p.ID)
			default:
				// The secret may still exist; never delete it on save.
				delete(s.stored, p.ID)
				s.opts.log.WithField("profile", p.ID).WithError(err).Warn("cannot read proxy password from keyring")
			}
		}
		out.Put(p)
	}
	return out, nil
}

// Save implements Store. Secrets are written before the records so a
// persisted record never refers to a missing secret. A secret is only deleted
// when this store read or wrote it and the password has since been cleared.
func (s *SecretStore) Save(ctx context.Context, set *profile.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stripped := profile.NewSet()
	for _, p := range set.List() {
		switch {
		case p.Proxy.Password != "":
			if err := s.secrets.Set(p.ID, p.Proxy.Password); err != nil {
				return fmt.Errorf("%w: keyring: %v", ErrPersistence, err)
			}
			s.stored[p.ID] = true
		case s.stored[p.ID]:
			if err := s.secrets.Delete(p.ID); err != nil && !errors.Is(err, keyring.ErrSecretNotFound) {
				s.opts.log.WithField("profile", p.ID).WithError(err).Warn("cannot clear proxy password from keyring")
				break
			}
			delete(s.stored, p.ID)
		}
		p.Proxy.Password = ""
		stripped.Put(p)
	}
	return s.inner.Save(ctx, stripped)
}

// Forget removes the stored secret of a profile.
func (s *SecretStore) Forget(id string) error {
	s.mu.Lock()
	delete(s.stored, id)
	s.mu.Unlock()
	return s.secrets.Delete(id)
}

// Lock implements profile.Locker when the inner store does.
func (s *SecretStore) Lock(ctx context.Context) (func(), error) {
	if l, ok := s.inner.(profile.Locker); ok {
		return l.Lock(ctx)
	}
	return func() {}, nil
}

// Close implements Store.
func (s *SecretStore) Close() error {
	return s.inner.Close()
}
