// Package session launches browser sessions for profiles and keeps each
// profile's active flag in step with its browser process.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xabinapal/dabrowser/internal/browser"
	"github.com/xabinapal/dabrowser/internal/config"
	"github.com/xabinapal/dabrowser/internal/extension"
	"github.com/xabinapal/dabrowser/internal/logging"
	"github.com/xabinapal/dabrowser/internal/profile"
	"github.com/xabinapal/dabrowser/internal/utils"
)

// ExtensionBuilder produces per-launch proxy extensions.
type ExtensionBuilder interface {
	Build(ctx context.Context, proxy profile.Proxy, owner, token string) (*extension.Artifact, error)
	ReleaseToken(owner, token string) error
	Release(owner string) error
}

// SecretForgetter drops secrets kept outside the profile records.
type SecretForgetter interface {
	Forget(id string) error
}

// Layout locates per-session state on disk.
type Layout struct {
	// SessionsDir holds one browser user-data-dir per profile.
	SessionsDir string
	// RunDir holds session markers.
	RunDir string
}

// LayoutFromPaths derives the layout from the application paths.
func LayoutFromPaths(p config.Paths) Layout {
	return Layout{SessionsDir: p.SessionsDir, RunDir: p.RunDir}
}

// Launcher starts sessions and reconciles them when they end.
type Launcher struct {
	registry *profile.Registry
	driver   browser.Driver
	builder  ExtensionBuilder
	layout   Layout

	defaults  browser.LaunchSpec
	observers []Observer
	secrets   SecretForgetter
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
	alive     func(pid int) bool
	self      int

	mu       sync.Mutex
	sessions map[string]*Handle
	wg       sync.WaitGroup
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(l *Launcher) {
		l.observers = append(l.observers, o)
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Launcher) {
		l.log = log
	}
}

// WithLaunchDefaults sets the executable, landing URL, extra arguments and
// sandbox setting used for every launch.
func WithLaunchDefaults(spec browser.LaunchSpec) Option {
	return func(l *Launcher) {
		l.defaults = spec
	}
}

// WithSecretForgetter makes Forget also drop the profile's stored secret.
func WithSecretForgetter(f SecretForgetter) Option {
	return func(l *Launcher) {
		l.secrets = f
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Launcher) {
		l.now = now
	}
}

// NewLauncher creates a launcher.
func NewLauncher(registry *profile.Registry, driver browser.Driver, builder ExtensionBuilder, layout Layout, opts ...Option) *Launcher {
	l := &Launcher{
		registry: registry,
		driver:   driver,
		builder:  builder,
		layout:   layout,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		newID:    uuid.NewString,
		alive:    browser.ProcessAlive,
		self:     os.Getpid(),
		sessions: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run launches the profile and blocks until its session ends.
func (l *Launcher) Run(ctx context.Context, id string) error {
	h, err := l.Launch(ctx, id)
	if err != nil {
		return err
	}
	return h.Wait()
}

// Launch prepares and starts a session for the profile, then supervises it
// in the background. Cancelling ctx stops the browser; the session is
// reconciled either way.
func (l *Launcher) Launch(ctx context.Context, id string) (*Handle, error) {
	p, err := l.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if !utils.IsSafeID(p.ID) {
		return nil, fmt.Errorf("%w: profile id %q is not usable as a directory name", ErrLaunch, p.ID)
	}

	h := newHandle(l.newID(), p.ID, p.Name)
	log := l.log.WithFields(logrus.Fields{
		logging.FieldProfile: p.ID,
		logging.FieldLaunch:  h.id,
	})

	l.mu.Lock()
	if _, running := l.sessions[p.ID]; running {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionRunning, p.Name)
	}
	l.sessions[p.ID] = h
	l.mu.Unlock()

	if err := l.checkMarker(p.ID); err != nil {
		l.untrack(h)
		return nil, err
	}
	// The claim is on disk before the active flag is set, so other
	// processes never mistake a starting session for a stale one.
	claim := marker{Owner: l.self, LaunchID: h.id, StartedAt: l.now()}
	if err := l.claimMarker(p.ID, claim); err != nil {
		l.untrack(h)
		if errors.Is(err, ErrSessionRunning) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: session marker: %w", ErrLaunch, err)
	}

	spec, err := l.prepare(ctx, h, p)
	if err != nil {
		return nil, l.fail(h, err)
	}

	h.setState(StateStarting)
	if _, err := l.registry.SetActive(ctx, p.ID, true); err != nil {
		return nil, l.fail(h, err)
	}

	proc, err := l.driver.Start(ctx, spec)
	if err != nil {
		if _, rbErr := l.registry.SetActive(context.WithoutCancel(ctx), p.ID, false); rbErr != nil {
			log.WithError(rbErr).Error("Failed to roll back active flag")
		}
		return nil, l.fail(h, err)
	}

	startedAt := l.now()
	h.started(proc.PID(), startedAt)
	if err := l.writeMarker(p.ID, marker{PID: proc.PID(), Owner: l.self, LaunchID: h.id, StartedAt: startedAt}); err != nil {
		log.WithError(err).Warn("Failed to write session marker")
	}

	log.WithFields(logrus.Fields{
		logging.FieldPID: proc.PID(),
		"strategy":       profile.StrategyName(spec.Strategy),
	}).Info("Session started")
	l.notify(func(o Observer, e Event) { o.SessionStarted(e) }, h.event(l.now()))

	l.wg.Add(1)
	go l.supervise(ctx, h, proc)
	return h, nil
}

// prepare builds the launch spec: session directory and, for authenticated
// proxies, the unpacked extension.
func (l *Launcher) prepare(ctx context.Context, h *Handle, p profile.Profile) (browser.LaunchSpec, error) {
	spec := l.defaults
	spec.ExtraArgs = append([]string(nil), l.defaults.ExtraArgs...)
	spec.UserDataDir = filepath.Join(l.layout.SessionsDir, p.ID)
	spec.Strategy = p.Strategy()

	if err := os.MkdirAll(spec.UserDataDir, 0700); err != nil {
		return spec, fmt.Errorf("session directory: %w", err)
	}

	auth, ok := spec.Strategy.(profile.AuthenticatedProxy)
	if !ok {
		return spec, nil
	}

	artifact, err := l.builder.Build(ctx, auth.Proxy(), p.ID, h.id)
	if err != nil {
		return spec, err
	}
	if artifact == nil {
		return spec, fmt.Errorf("%w: no bundle for %s", extension.ErrInvalidBundle, auth.Address())
	}
	h.mu.Lock()
	h.artifact = artifact
	h.mu.Unlock()

	dir := artifact.UnpackedDir()
	if err := extension.Unpack(artifact, dir); err != nil {
		return spec, err
	}
	spec.ExtensionDir = dir
	return spec, nil
}

// fail ends a launch that never reached Running.
func (l *Launcher) fail(h *Handle, cause error) error {
	err := fmt.Errorf("%w: %w", ErrLaunch, cause)

	l.removeOwnMarker(h.profileID, h.id)
	l.releaseArena(h)
	l.untrack(h)
	h.finish(StateFailed, err)

	l.log.WithFields(logrus.Fields{
		logging.FieldProfile: h.profileID,
		logging.FieldLaunch:  h.id,
	}).WithError(cause).Error("Session failed to start")
	l.notify(func(o Observer, e Event) { o.SessionFailed(e) }, h.event(l.now()))
	return err
}

// supervise waits for the browser and always reconciles afterwards.
func (l *Launcher) supervise(ctx context.Context, h *Handle, proc browser.Process) {
	defer l.wg.Done()

	var waitErr error
	defer func() {
		if r := recover(); r != nil {
			waitErr = fmt.Errorf("session supervisor panic: %v", r)
		}
		l.reconcile(ctx, h, waitErr)
	}()

	waitErr = proc.Wait()
}

func (l *Launcher) reconcile(ctx context.Context, h *Handle, exitErr error) {
	h.setState(StateReconciling)
	log := l.log.WithFields(logrus.Fields{
		logging.FieldProfile: h.profileID,
		logging.FieldLaunch:  h.id,
	})

	rctx := context.WithoutCancel(ctx)
	if _, err := l.registry.SetActive(rctx, h.profileID, false); err != nil && !errors.Is(err, profile.ErrNotFound) {
		log.WithError(err).Warn("Failed to clear active flag, retrying")
		if _, err := l.registry.SetActive(rctx, h.profileID, false); err != nil {
			log.WithError(err).Error("Failed to clear active flag; it will be cleared on next start")
		}
	}

	l.removeOwnMarker(h.profileID, h.id)
	l.releaseArena(h)
	l.untrack(h)
	h.finish(StateDone, exitErr)

	e := h.event(l.now())
	entry := log.WithField("duration", utils.FormatDuration(e.Duration))
	if exitErr != nil {
		entry.WithError(exitErr).Warn("Session ended")
	} else {
		entry.Info("Session ended")
	}
	l.notify(func(o Observer, e Event) { o.SessionEnded(e) }, e)
}

func (l *Launcher) releaseArena(h *Handle) {
	h.mu.Lock()
	artifact := h.artifact
	h.mu.Unlock()
	if artifact == nil {
		return
	}
	if err := l.builder.ReleaseToken(h.profileID, h.id); err != nil {
		l.log.WithError(err).WithField(logging.FieldLaunch, h.id).Warn("Failed to remove extension arena")
	}
}

// untrack forgets h if it is still the tracked session of its profile.
func (l *Launcher) untrack(h *Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessions[h.profileID] == h {
		delete(l.sessions, h.profileID)
	}
}

func (l *Launcher) notify(call func(Observer, Event), e Event) {
	for _, o := range l.observers {
		call(o, e)
	}
}

// Wait blocks until every supervised session has been reconciled.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

// Running returns the ids of profiles with a session supervised by this
// launcher, sorted.
func (l *Launcher) Running() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.sessions))
	for id := range l.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsRunning reports whether the profile has a live session, here or in
// another process.
func (l *Launcher) IsRunning(id string) bool {
	l.mu.Lock()
	_, ok := l.sessions[id]
	l.mu.Unlock()
	return ok || l.markerLive(id)
}

// Recover clears active flags left behind by sessions whose browser is gone,
// for example after a crash. It returns the ids it reconciled.
func (l *Launcher) Recover(ctx context.Context) ([]string, error) {
	if err := l.registry.Reload(ctx); err != nil {
		return nil, err
	}

	var recovered []string
	var errs []error

	for _, p := range l.registry.List() {
		if l.IsRunning(p.ID) {
			continue
		}
		safe := utils.IsSafeID(p.ID)
		if !p.Active {
			if safe {
				l.removeStaleMarker(p.ID)
			}
			continue
		}
		// A launch may claim the profile between the check above and the
		// save, so its marker is checked again under the store lock. The
		// callback must not take l.mu; Forget holds it while deleting.
		cleared, err := l.registry.ClearStale(ctx, p.ID, func() bool {
			return safe && l.markerLive(p.ID)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("profile %s: %w", p.ID, err))
			continue
		}
		if !cleared {
			continue
		}
		if safe {
			l.removeStaleMarker(p.ID)
		}
		l.log.WithField(logging.FieldProfile, p.ID).Info("Recovered stale session")
		recovered = append(recovered, p.ID)
	}

	// Markers of deleted profiles.
	for _, id := range l.markedIDs() {
		if _, err := l.registry.Get(id); errors.Is(err, profile.ErrNotFound) {
			l.removeStaleMarker(id)
		}
	}

	return recovered, errors.Join(errs...)
}

// removeStaleMarker removes the marker of id unless it belongs to a live
// session.
func (l *Launcher) removeStaleMarker(id string) {
	if m, ok := l.readMarker(id); !ok || !l.live(m) {
		l.removeMarker(id)
	}
}

// Forget deletes a profile along with its session directory, extension
// artifacts, marker and stored secret. A profile with a live session cannot
// be forgotten.
func (l *Launcher) Forget(ctx context.Context, id string) error {
	// Holding l.mu across the check and the delete keeps a Launch in this
	// process from starting in between.
	l.mu.Lock()
	_, tracked := l.sessions[id]
	if tracked || (utils.IsSafeID(id) && l.markerLive(id)) {
		l.mu.Unlock()
		return fmt.Errorf("%w: stop the browser before removing the profile", ErrSessionRunning)
	}
	err := l.registry.Delete(ctx, id)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if !utils.IsSafeID(id) {
		return nil
	}

	log := l.log.WithField(logging.FieldProfile, id)
	if err := os.RemoveAll(filepath.Join(l.layout.SessionsDir, id)); err != nil {
		log.WithError(err).Warn("Failed to remove session directory")
	}
	if err := l.builder.Release(id); err != nil {
		log.WithError(err).Warn("Failed to remove extension artifacts")
	}
	l.removeMarker(id)
	if l.secrets != nil {
		if err := l.secrets.Forget(id); err != nil {
			log.WithError(err).Warn("Failed to remove stored proxy password")
		}
	}
	return nil
}
