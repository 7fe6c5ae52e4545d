package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xabinapal/dabrowser/internal/browser"
	"github.com/xabinapal/dabrowser/internal/extension"
	"github.com/xabinapal/dabrowser/internal/logging"
	"github.com/xabinapal/dabrowser/internal/profile"
	"github.com/xabinapal/dabrowser/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProcess exits when told to.
type fakeProcess struct {
	pid  int
	exit chan error
	once sync.Once
	err  error
	done chan struct{}
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, exit: make(chan error, 1), done: make(chan struct{})}
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Wait() error {
	p.once.Do(func() {
		p.err = <-p.exit
		close(p.done)
	})
	<-p.done
	return p.err
}

func (p *fakeProcess) Terminate(bool) error {
	select {
	case p.exit <- errors.New("signal: terminated"):
	default:
	}
	return nil
}

// fakeDriver records launch specs and hands out fakeProcesses.
type fakeDriver struct {
	mu       sync.Mutex
	startErr error
	panicky  bool
	specs    []browser.LaunchSpec
	procs    []*fakeProcess
	// activeAtStart records the profile's active flag when Start was called.
	activeAtStart []bool
	registry      *profile.Registry
}

func (d *fakeDriver) Start(ctx context.Context, spec browser.LaunchSpec) (browser.Process, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.registry != nil {
		id := filepath.Base(spec.UserDataDir)
		p, err := d.registry.Get(id)
		d.activeAtStart = append(d.activeAtStart, err == nil && p.Active)
	}
	d.specs = append(d.specs, spec)
	if d.startErr != nil {
		return nil, d.startErr
	}
	proc := newFakeProcess(1000 + len(d.procs))
	d.procs = append(d.procs, proc)
	if d.panicky {
		return panicProcess{proc}, nil
	}
	return proc, nil
}

func (d *fakeDriver) proc(i int) *fakeProcess {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.procs[i]
}

func (d *fakeDriver) spec(i int) browser.LaunchSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.specs[i]
}

type panicProcess struct{ *fakeProcess }

func (panicProcess) Wait() error { panic("wait exploded") }

// failingBuilder fails every build.
type failingBuilder struct{ *extension.Builder }

func (failingBuilder) Build(context.Context, profile.Proxy, string, string) (*extension.Artifact, error) {
	return nil, fmt.Errorf("%w: disk full", extension.ErrInvalidBundle)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.events))
	for i, e := range r.events {
		out[i] = e.State
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	registry *profile.Registry
	store    *store.MemoryStore
	driver   *fakeDriver
	builder  *extension.Builder
	layout   Layout
	events   *recorder
	launcher *Launcher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	root := t.TempDir()
	mem := store.NewMemoryStore()
	reg, err := profile.NewRegistry(context.Background(), mem, profile.WithLogger(logging.Discard()))
	require.NoError(t, err)

	f := &fixture{
		registry: reg,
		store:    mem,
		driver:   &fakeDriver{registry: reg},
		builder:  extension.NewBuilder(filepath.Join(root, "extensions")),
		layout: Layout{
			SessionsDir: filepath.Join(root, "sessions"),
			RunDir:      filepath.Join(root, "run"),
		},
		events: &recorder{},
	}
	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithObserver(ObserverFunc(f.events.observe)),
		WithLaunchDefaults(browser.LaunchSpec{Executable: "/usr/bin/chromium", LandingURL: "https://luckybird.io"}),
	}, opts...)
	f.launcher = NewLauncher(reg, f.driver, f.builder, f.layout, opts...)
	return f
}

func (f *fixture) create(t *testing.T, name, proxy string) profile.Profile {
	t.Helper()
	px, err := profile.ParseProxy(proxy)
	require.NoError(t, err)
	p, err := f.registry.Create(context.Background(), name, px)
	require.NoError(t, err)
	return p
}

func (f *fixture) active(t *testing.T, id string) bool {
	t.Helper()
	p, err := f.registry.Get(id)
	require.NoError(t, err)
	return p.Active
}

func TestLaunchNormalExit(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Plain", "10.0.0.1:3128")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	assert.Equal(t, StateRunning, h.State())
	assert.True(t, f.active(t, p.ID))
	assert.Equal(t, []string{p.ID}, f.launcher.Running())
	assert.FileExists(t, filepath.Join(f.layout.RunDir, p.ID+".pid"))
	assert.DirExists(t, filepath.Join(f.layout.SessionsDir, p.ID))

	spec := f.driver.spec(0)
	assert.Equal(t, profile.PlainProxy{Host: "10.0.0.1", Port: "3128"}, spec.Strategy)
	assert.Equal(t, filepath.Join(f.layout.SessionsDir, p.ID), spec.UserDataDir)
	assert.Equal(t, "https://luckybird.io", spec.LandingURL)
	assert.Empty(t, spec.ExtensionDir)

	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())

	assert.Equal(t, StateDone, h.State())
	assert.False(t, f.active(t, p.ID))
	assert.Empty(t, f.launcher.Running())
	assert.NoFileExists(t, filepath.Join(f.layout.RunDir, p.ID+".pid"))
	assert.Equal(t, []State{StateRunning, StateDone}, f.events.states())
	assert.False(t, f.store.Snapshot()[0].Active)

	f.launcher.Wait()
}

func TestLaunchCrashExit(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Crashy", "10.0.0.1:3128")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	crash := errors.New("exit status 139")
	f.driver.proc(0).exit <- crash
	assert.ErrorIs(t, h.Wait(), crash)

	assert.False(t, f.active(t, p.ID))
	last := f.events.last()
	assert.Equal(t, StateDone, last.State)
	assert.ErrorIs(t, last.Err, crash)
	f.launcher.Wait()
}

func TestLaunchSpawnFailure(t *testing.T) {
	f := newFixture(t)
	f.driver.startErr = fmt.Errorf("%w: chromium", browser.ErrBrowserNotFound)
	p := f.create(t, "Work", "10.0.0.1:3128:alice:secret")

	_, err := f.launcher.Launch(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrLaunch)
	assert.ErrorIs(t, err, browser.ErrBrowserNotFound)

	// Active was set before spawn and rolled back after.
	require.Len(t, f.driver.activeAtStart, 1)
	assert.True(t, f.driver.activeAtStart[0])
	assert.False(t, f.active(t, p.ID))

	assert.Empty(t, f.launcher.Running())
	assert.Equal(t, []State{StateFailed}, f.events.states())

	entries, err := os.ReadDir(filepath.Join(f.builder.Root, p.ID))
	if err == nil {
		assert.Empty(t, entries, "extension arena should be released")
	}
}

func TestLaunchExtensionFailure(t *testing.T) {
	f := newFixture(t)
	f.launcher.builder = failingBuilder{f.builder}
	p := f.create(t, "Work", "10.0.0.1:3128:alice:secret")

	_, err := f.launcher.Launch(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrLaunch)
	assert.ErrorIs(t, err, extension.ErrInvalidBundle)

	assert.Empty(t, f.driver.specs, "browser must not start")
	assert.False(t, f.active(t, p.ID))
	assert.Equal(t, 1, len(f.events.states()))
	assert.Equal(t, StateFailed, f.events.last().State)
}

func TestLaunchAuthenticated(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Work", "10.0.0.1:3128:alice:secret")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	spec := f.driver.spec(0)
	require.NotEmpty(t, spec.ExtensionDir)
	assert.FileExists(t, filepath.Join(spec.ExtensionDir, extension.ManifestFile))
	assert.FileExists(t, filepath.Join(spec.ExtensionDir, extension.BackgroundFile))

	got, err := extension.Inspect(filepath.Join(filepath.Dir(spec.ExtensionDir), extension.ArchiveFile))
	require.NoError(t, err)
	assert.Equal(t, profile.Proxy{Host: "10.0.0.1", Port: "3128", Username: "alice", Password: "secret"}, got)

	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())

	assert.NoDirExists(t, filepath.Dir(spec.ExtensionDir), "arena released after session")
	f.launcher.Wait()
}

func TestLaunchDouble(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Once", "")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = f.launcher.Launch(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrSessionRunning)
	assert.Len(t, f.driver.specs, 1)

	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())

	// A relaunch after the session ended is allowed.
	h2, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)
	f.driver.proc(1).exit <- nil
	require.NoError(t, h2.Wait())
	f.launcher.Wait()
}

func TestLaunchRejectsLiveMarker(t *testing.T) {
	f := newFixture(t)
	f.launcher.alive = func(pid int) bool { return pid == 777 }
	p := f.create(t, "Elsewhere", "")

	require.NoError(t, f.launcher.writeMarker(p.ID, marker{PID: 777}))
	_, err := f.launcher.Launch(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrSessionRunning)
	assert.Empty(t, f.launcher.Running())

	// A stale marker is cleaned and the launch proceeds.
	require.NoError(t, f.launcher.writeMarker(p.ID, marker{PID: 778}))
	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)
	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())
	f.launcher.Wait()
}

func TestLaunchUnknownProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.launcher.Launch(context.Background(), "missing")
	assert.ErrorIs(t, err, profile.ErrNotFound)
}

func TestLaunchCancelReconciles(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Cancelled", "")

	ctx, cancel := context.WithCancel(context.Background())
	h, err := f.launcher.Launch(ctx, p.ID)
	require.NoError(t, err)

	// The fake driver does not watch ctx; terminate like ExecDriver would.
	cancel()
	require.NoError(t, f.driver.proc(0).Terminate(false))

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.False(t, f.active(t, p.ID), "reconciliation must survive a cancelled context")
	f.launcher.Wait()
}

func TestLaunchPanicInWaitReconciles(t *testing.T) {
	f := newFixture(t)
	f.driver.panicky = true
	p := f.create(t, "Panicky", "")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	err = h.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wait exploded")
	assert.False(t, f.active(t, p.ID))
	f.launcher.Wait()
}

func TestReconcileRetriesSave(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Flaky", "")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	f.store.SetFailing(true)
	f.driver.proc(0).exit <- nil
	<-h.Done()
	f.launcher.Wait()

	// Both attempts failed; the flag is left for Recover.
	f.store.SetFailing(false)
	assert.True(t, f.active(t, p.ID))

	recovered, err := f.launcher.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{p.ID}, recovered)
	assert.False(t, f.active(t, p.ID))
}

func TestConcurrentAuthenticatedLaunches(t *testing.T) {
	f := newFixture(t)
	const n = 6
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = f.create(t, fmt.Sprintf("P%d", i), fmt.Sprintf("10.0.0.%d:3128:user%d:pass%d", i+1, i, i)).ID
	}

	handles := make([]*Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := f.launcher.Launch(context.Background(), ids[i])
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.True(t, f.active(t, id))
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		spec := f.driver.spec(i)
		assert.False(t, seen[spec.ExtensionDir])
		seen[spec.ExtensionDir] = true

		got, err := extension.Inspect(filepath.Join(filepath.Dir(spec.ExtensionDir), extension.ArchiveFile))
		require.NoError(t, err)
		owner := filepath.Base(spec.UserDataDir)
		p, err := f.registry.Get(owner)
		require.NoError(t, err)
		assert.Equal(t, p.Proxy, got, "bundle must carry its own profile's credentials")
	}

	for i := 0; i < n; i++ {
		f.driver.proc(i).exit <- nil
	}
	for _, h := range handles {
		require.NoError(t, h.Wait())
	}
	f.launcher.Wait()

	for _, id := range ids {
		assert.False(t, f.active(t, id))
	}
}

func TestRecover(t *testing.T) {
	f := newFixture(t)
	f.launcher.alive = func(pid int) bool { return pid == 555 }

	stale := f.create(t, "Stale", "")
	live := f.create(t, "Live", "")
	idle := f.create(t, "Idle", "")
	for _, id := range []string{stale.ID, live.ID} {
		_, err := f.registry.SetActive(context.Background(), id, true)
		require.NoError(t, err)
	}
	require.NoError(t, f.launcher.writeMarker(stale.ID, marker{PID: 1}))
	require.NoError(t, f.launcher.writeMarker(live.ID, marker{PID: 555}))
	require.NoError(t, f.launcher.writeMarker("deadbeef", marker{PID: 2}))

	recovered, err := f.launcher.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, recovered)

	assert.False(t, f.active(t, stale.ID))
	assert.True(t, f.active(t, live.ID))
	assert.False(t, f.active(t, idle.ID))
	assert.NoFileExists(t, filepath.Join(f.layout.RunDir, stale.ID+".pid"))
	assert.FileExists(t, filepath.Join(f.layout.RunDir, live.ID+".pid"))
	assert.NoFileExists(t, filepath.Join(f.layout.RunDir, "deadbeef.pid"))
}

type fakeSecrets struct{ forgotten []string }

func (s *fakeSecrets) Forget(id string) error {
	s.forgotten = append(s.forgotten, id)
	return nil
}

func TestForget(t *testing.T) {
	secrets := &fakeSecrets{}
	f := newFixture(t, WithSecretForgetter(secrets))
	p := f.create(t, "Work", "10.0.0.1:3128:alice:secret")

	h, err := f.launcher.Launch(context.Background(), p.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.launcher.Forget(context.Background(), p.ID), ErrSessionRunning)
	_, err = f.registry.Get(p.ID)
	require.NoError(t, err)

	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())
	f.launcher.Wait()

	require.NoError(t, f.launcher.Forget(context.Background(), p.ID))
	_, err = f.registry.Get(p.ID)
	assert.ErrorIs(t, err, profile.ErrNotFound)
	assert.NoDirExists(t, filepath.Join(f.layout.SessionsDir, p.ID))
	assert.NoDirExists(t, filepath.Join(f.builder.Root, p.ID))
	assert.Equal(t, []string{p.ID}, secrets.forgotten)
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Work", "10.0.0.1:3128:alice:secret")

	assert.Equal(t, profile.AuthenticatedProxy{Host: "10.0.0.1", Port: "3128", Username: "alice", Password: "secret"}, p.Strategy())
	assert.False(t, p.Active)

	done := make(chan error, 1)
	go func() { done <- f.launcher.Run(context.Background(), p.ID) }()

	require.Eventually(t, func() bool { return f.driver.procCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, f.active(t, p.ID))

	f.driver.proc(0).exit <- nil
	require.NoError(t, <-done)

	assert.False(t, f.active(t, p.ID))
	f.launcher.Wait()
}

func (d *fakeDriver) procCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.procs)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateReconciling.Terminal())
}

func TestClaimMarkerKeepsStartingSessionActive(t *testing.T) {
	f := newFixture(t)
	const owner = 4242
	f.launcher.alive = func(pid int) bool { return pid == owner }
	p := f.create(t, "Starting", "")

	// Another process has claimed the profile and set the flag, but its
	// browser is not up yet.
	require.NoError(t, f.launcher.claimMarker(p.ID, marker{Owner: owner, LaunchID: "elsewhere", StartedAt: time.Now()}))
	_, err := f.registry.SetActive(context.Background(), p.ID, true)
	require.NoError(t, err)

	assert.True(t, f.launcher.IsRunning(p.ID))
	recovered, err := f.launcher.Recover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recovered)
	assert.True(t, f.active(t, p.ID))
	assert.FileExists(t, filepath.Join(f.layout.RunDir, p.ID+".pid"))

	_, err = f.launcher.Launch(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrSessionRunning)
	assert.Empty(t, f.launcher.Running())
}

func TestStaleClaims(t *testing.T) {
	tests := []struct {
		name  string
		claim marker
	}{
		{"dead owner", marker{Owner: 31337, LaunchID: "gone", StartedAt: time.Now()}},
		{"expired claim", marker{Owner: 4242, LaunchID: "slow", StartedAt: time.Now().Add(-2 * claimTTL)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.launcher.alive = func(pid int) bool { return pid == 4242 }
			p := f.create(t, "Stale", "")
			_, err := f.registry.SetActive(context.Background(), p.ID, true)
			require.NoError(t, err)
			require.NoError(t, f.launcher.writeMarker(p.ID, tt.claim))

			recovered, err := f.launcher.Recover(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{p.ID}, recovered)
			assert.False(t, f.active(t, p.ID))
			assert.NoFileExists(t, filepath.Join(f.layout.RunDir, p.ID+".pid"))
		})
	}
}

func TestClaimMarkerIsExclusive(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Once", "")

	require.NoError(t, f.launcher.claimMarker(p.ID, marker{Owner: 1, LaunchID: "first"}))
	err := f.launcher.claimMarker(p.ID, marker{Owner: 2, LaunchID: "second"})
	assert.ErrorIs(t, err, ErrSessionRunning)

	m, ok := f.launcher.readMarker(p.ID)
	require.True(t, ok)
	assert.Equal(t, "first", m.LaunchID)

	// Only the owning launch removes its marker.
	f.launcher.removeOwnMarker(p.ID, "second")
	assert.FileExists(t, f.launcher.markerPath(p.ID))
	f.launcher.removeOwnMarker(p.ID, "first")
	assert.NoFileExists(t, f.launcher.markerPath(p.ID))
}

func TestLaunchFailureRemovesClaim(t *testing.T) {
	f := newFixture(t)
	f.driver.startErr = errors.New("exec: not found")
	p := f.create(t, "Broken", "")

	_, err := f.launcher.Launch(context.Background(), p.ID)
	require.ErrorIs(t, err, ErrLaunch)
	assert.NoFileExists(t, f.launcher.markerPath(p.ID))
	assert.False(t, f.active(t, p.ID))
}

// claimingStore runs onLock the first time the registry locks the store.
type claimingStore struct {
	*store.MemoryStore
	once   sync.Once
	onLock func()
}

func (s *claimingStore) Lock(ctx context.Context) (func(), error) {
	s.once.Do(s.onLock)
	return s.MemoryStore.Lock(ctx)
}

func TestRecoverRechecksClaimUnderStoreLock(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	const owner = 4242

	p := profile.Profile{ID: "0f0f0f0f-0000-4000-8000-000000000001", Name: "Racing", Active: true}
	cs := &claimingStore{MemoryStore: store.NewMemoryStore(p)}
	reg, err := profile.NewRegistry(ctx, cs, profile.WithLogger(logging.Discard()))
	require.NoError(t, err)

	l := NewLauncher(reg, &fakeDriver{}, extension.NewBuilder(filepath.Join(root, "extensions")),
		Layout{SessionsDir: filepath.Join(root, "sessions"), RunDir: filepath.Join(root, "run")},
		WithLogger(logging.Discard()))
	l.alive = func(pid int) bool { return pid == owner }

	// A launch elsewhere claims the profile after Recover's first look.
	cs.onLock = func() {
		require.NoError(t, l.claimMarker(p.ID, marker{Owner: owner, LaunchID: "elsewhere", StartedAt: time.Now()}))
	}

	recovered, err := l.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, recovered)
	got, err := reg.Get(p.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

// gatedDriver blocks Start until released.
type gatedDriver struct {
	*fakeDriver
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDriver) Start(ctx context.Context, spec browser.LaunchSpec) (browser.Process, error) {
	close(d.entered)
	<-d.release
	return d.fakeDriver.Start(ctx, spec)
}

func TestForgetDuringLaunch(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "Starting", "")
	gd := &gatedDriver{fakeDriver: f.driver, entered: make(chan struct{}), release: make(chan struct{})}
	l := NewLauncher(f.registry, gd, f.builder, f.layout, WithLogger(logging.Discard()))

	launched := make(chan *Handle, 1)
	go func() {
		h, err := l.Launch(context.Background(), p.ID)
		assert.NoError(t, err)
		launched <- h
	}()
	<-gd.entered

	assert.ErrorIs(t, l.Forget(context.Background(), p.ID), ErrSessionRunning)
	_, err := f.registry.Get(p.ID)
	require.NoError(t, err)

	close(gd.release)
	h := <-launched
	f.driver.proc(0).exit <- nil
	require.NoError(t, h.Wait())
	l.Wait()
}

func TestForgetRacingLaunch(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		p := f.create(t, "Racing", "")

		var (
			wg        sync.WaitGroup
			h         *Handle
			launchErr error
			forgetErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			h, launchErr = f.launcher.Launch(context.Background(), p.ID)
		}()
		go func() {
			defer wg.Done()
			forgetErr = f.launcher.Forget(context.Background(), p.ID)
		}()
		wg.Wait()

		if launchErr == nil {
			assert.ErrorIs(t, forgetErr, ErrSessionRunning, "a launched profile must not be forgotten")
			_, err := f.registry.Get(p.ID)
			assert.NoError(t, err)
			f.driver.proc(0).exit <- nil
			require.NoError(t, h.Wait())
		} else {
			assert.NoError(t, forgetErr)
		}
		f.launcher.Wait()
	}
}
