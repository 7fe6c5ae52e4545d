// Package store persists the complete profile set. Every backend loads and
// saves the whole mapping at once.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xabinapal/dabrowser/internal/profile"
)

// ErrPersistence indicates the profile set could not be written.
var ErrPersistence = errors.New("failed to persist profiles")

// Store loads and saves the profile set.
//
// Load never fails because the stored representation is missing or corrupt;
// it logs a warning and returns an empty set instead. It only fails when ctx
// is done or the backend cannot be opened at all.
type Store interface {
	Load(ctx context.Context) (*profile.Set, error)
	Save(ctx context.Context, set *profile.Set) error
	Close() error
}

var _ profile.Store = Store(nil)

// Option configures a store.
type Option func(*options)

type options struct {
	log logrus.FieldLogger
	now func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{
		log: logrus.StandardLogger(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for load warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithClock overrides the clock used to name quarantined files.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// warnInvalid logs records that would be rejected by the registry.
func warnInvalid(log logrus.FieldLogger, set *profile.Set) {
	for _, p := range set.List() {
		if err := p.Validate(); err != nil {
			log.WithField("profile", p.ID).WithError(err).Warn("stored profile is invalid")
		}
	}
}
