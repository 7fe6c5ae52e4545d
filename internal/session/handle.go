package session

import (
	"sync"
	"time"

	"github.com/xabinapal/dabrowser/internal/extension"
)

// Handle tracks one launch.
type Handle struct {
	id          string
	profileID   string
	profileName string

	mu        sync.Mutex
	state     State
	pid       int
	startedAt time.Time
	artifact  *extension.Artifact
	err       error
	done      chan struct{}
}

func newHandle(id, profileID, profileName string) *Handle {
	return &Handle{
		id:          id,
		profileID:   profileID,
		profileName: profileName,
		state:       StatePreparing,
		done:        make(chan struct{}),
	}
}

// ID returns the launch id.
func (h *Handle) ID() string { return h.id }

// ProfileID returns the launched profile's id.
func (h *Handle) ProfileID() string { return h.profileID }

// ProfileName returns the launched profile's name at launch time.
func (h *Handle) ProfileName() string { return h.profileName }

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// PID returns the browser process id, or 0 before it started.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pid
}

// Done is closed once the launch reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the failure or exit error once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the session ends and returns Err.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) started(pid int, at time.Time) {
	h.mu.Lock()
	h.pid = pid
	h.startedAt = at
	h.state = StateRunning
	h.mu.Unlock()
}

func (h *Handle) finish(s State, err error) {
	h.mu.Lock()
	h.state = s
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) event(now time.Time) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := Event{
		ProfileID:   h.profileID,
		ProfileName: h.profileName,
		LaunchID:    h.id,
		PID:         h.pid,
		State:       h.state,
		StartedAt:   h.startedAt,
		Err:         h.err,
	}
	if !h.startedAt.IsZero() && h.state.Terminal() {
		e.Duration = now.Sub(h.startedAt)
	}
	return e
}
