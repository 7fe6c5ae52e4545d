package session

import (
	"errors"
	"time"
)

var (
	// ErrLaunch indicates the browser could not be started. The profile's
	// active flag is rolled back before it is returned.
	ErrLaunch = errors.New("failed to launch session")

	// ErrSessionRunning indicates the profile already has a live session.
	ErrSessionRunning = errors.New("session already running")
)

// State is a step of a launch.
type State int

const (
	StatePreparing State = iota
	StateStarting
	StateRunning
	StateReconciling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event describes a session lifecycle change.
type Event struct {
	ProfileID   string
	ProfileName string
	LaunchID    string
	PID         int
	State       State
	StartedAt   time.Time
	// Duration is set once the session has ended.
	Duration time.Duration
	// Err is the launch failure or the browser's exit error.
	Err error
}

// Observer is notified of session lifecycle changes. Calls happen outside
// the launcher's locks, possibly from several goroutines at once.
type Observer interface {
	SessionStarted(Event)
	SessionEnded(Event)
	SessionFailed(Event)
}

// ObserverFunc adapts a function to Observer. The event State tells the
// notifications apart.
type ObserverFunc func(Event)

func (f ObserverFunc) SessionStarted(e Event) { f(e) }
func (f ObserverFunc) SessionEnded(e Event)   { f(e) }
func (f ObserverFunc) SessionFailed(e Event)  { f(e) }
