package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store persists the complete profile set.
type Store interface {
	Load(ctx context.Context) (*Set, error)
	Save(ctx context.Context, set *Set) error
}

// Seed is a profile created on an empty registry.
type Seed struct {
	Name  string
	Proxy string
}

// Registry owns the profile set. All reads and mutations are serialized.
// Reads use the set as of the last load or mutation. Every mutation reloads
// the store, applies the change and persists it before it becomes visible.
type Registry struct {
	mu    sync.Mutex
	store Store
	set   *Set
	newID func() string
	log   logrus.FieldLogger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(log logrus.FieldLogger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// NewRegistry loads the profile set from store once.
func NewRegistry(ctx context.Context, store Store, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		store: store,
		newID: uuid.NewString,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	set, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set = NewSet()
	}
	r.set = set
	return r, nil
}

// Reload replaces the in-memory set with the store's current contents.
func (r *Registry) Reload(ctx context.Context) error {
	set, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	if set == nil {
		set = NewSet()
	}

	r.mu.Lock()
	r.set = set
	r.mu.Unlock()
	return nil
}

// Locker is implemented by stores shared between processes. Lock keeps other
// writers out until unlock is called.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// errUnchanged tells mutate that nothing needs saving.
var errUnchanged = errors.New("profile set unchanged")

// mutate applies fn to the store's current profile set and saves the result.
// The store is locked for the whole cycle, so changes made by other processes
// since the last load are never overwritten. Callers hold r.mu.
func (r *Registry) mutate(ctx context.Context, fn func(next *Set) error) error {
	unlock := func() {}
	if l, ok := r.store.(Locker); ok {
		var err error
		if unlock, err = l.Lock(ctx); err != nil {
			return fmt.Errorf("lock profile store: %w", err)
		}
	}
	defer unlock()

	current, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		current = NewSet()
	}
	r.set = current

	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if err := r.store.Save(ctx, next); err != nil {
		return err
	}
	r.set = next
	return nil
}

// Create adds a profile with a fresh id and Active=false.
func (r *Registry) Create(ctx context.Context, name string, proxy Proxy) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if err := proxy.Validate(); err != nil {
		return Profile{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := Profile{ID: r.newID(), Name: name, Proxy: proxy}
	err := r.mutate(ctx, func(next *Set) error {
		if _, exists := next.Get(p.ID); exists {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidProfile, p.ID)
		}
		next.Put(p)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	r.log.WithField("profile", p.ID).Debug("profile created")
	return p, nil
}

// Edit replaces the name and proxy of a profile. ID and Active are preserved.
func (r *Registry) Edit(ctx context.Context, id, name string, proxy Proxy) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if err := proxy.Validate(); err != nil {
		return Profile{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var p Profile
	err := r.mutate(ctx, func(next *Set) error {
		var ok bool
		if p, ok = next.Get(id); !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		p.Name = name
		p.Proxy = proxy
		next.Put(p)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	r.log.WithField("profile", id).Debug("profile edited")
	return p, nil
}

// SetActive sets the active flag. Setting the current value is a no-op that
// does not touch the store.
func (r *Registry) SetActive(ctx context.Context, id string, active bool) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateActive(ctx, id, func(bool) bool { return active })
}

// Toggle flips the active flag.
func (r *Registry) Toggle(ctx context.Context, id string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateActive(ctx, id, func(current bool) bool { return !current })
}

// ClearStale clears the active flag of id unless running reports true. It
// returns whether the flag was cleared. running is called while the store is
// locked, so it must not call back into the registry.
func (r *Registry) ClearStale(ctx context.Context, id string, running func() bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := false
	_, err := r.updateActive(ctx, id, func(current bool) bool {
		if !current || running() {
			return current
		}
		cleared = true
		return false
	})
	if err != nil {
		return false, err
	}
	return cleared, nil
}

// updateActive sets the flag to decide(current), reading current from the
// freshly loaded set. Callers hold r.mu.
func (r *Registry) updateActive(ctx context.Context, id string, decide func(current bool) bool) (Profile, error) {
	var p Profile
	err := r.mutate(ctx, func(next *Set) error {
		var ok bool
		if p, ok = next.Get(id); !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		active := decide(p.Active)
		if p.Active == active {
			return errUnchanged
		}
		p.Active = active
		next.Put(p)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}

	r.log.WithFields(logrus.Fields{"profile": id, "active": p.Active}).Debug("profile active flag set")
	return p, nil
}

// Delete removes a profile. Deleting an unknown id is a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := false
	err := r.mutate(ctx, func(next *Set) error {
		if !next.Delete(id) {
			return errUnchanged
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		r.log.WithField("profile", id).Debug("profile deleted")
	}
	return nil
}

// Get returns a profile by id.
func (r *Registry) Get(id string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.set.Get(id)
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// List returns every profile in insertion order.
func (r *Registry) List() []Profile {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.set.List()
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.set.Len()
}

// Resolve finds a profile by exact id, unique id prefix, or case-insensitive
// name, in that order.
func (r *Registry) Resolve(ref string) (Profile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Profile{}, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.set.Get(ref); ok {
		return p, nil
	}

	var byPrefix, byName []Profile
	for _, p := range r.set.List() {
		if strings.HasPrefix(p.ID, ref) {
			byPrefix = append(byPrefix, p)
		}
		if strings.EqualFold(p.Name, ref) {
			byName = append(byName, p)
		}
	}

	for _, matches := range [][]Profile{byPrefix, byName} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return Profile{}, fmt.Errorf("%w: %q matches %d profiles", ErrAmbiguous, ref, len(matches))
		}
	}

	return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Seed creates the given profiles when the registry is empty. It returns the
// created profiles, or nil when the registry already had profiles.
func (r *Registry) Seed(ctx context.Context, seeds []Seed) ([]Profile, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	created := make([]Profile, 0, len(seeds))
	parsed := make([]Profile, 0, len(seeds))
	for _, s := range seeds {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: seed without name", ErrInvalidProfile)
		}
		proxy, err := ParseProxy(s.Proxy)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", name, err)
		}
		parsed = append(parsed, Profile{Name: name, Proxy: proxy})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.mutate(ctx, func(next *Set) error {
		if next.Len() > 0 {
			return errUnchanged
		}
		for _, p := range parsed {
			p.ID = r.newID()
			next.Put(p)
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, nil
	}

	r.log.WithField("count", len(created)).Info("seeded default profiles")
	return created, nil
}
