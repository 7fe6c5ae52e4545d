// Package notify sends desktop notifications about browser sessions.
package notify

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/sirupsen/logrus"

	"github.com/xabinapal/dabrowser/internal/config"
	"github.com/xabinapal/dabrowser/internal/logging"
	"github.com/xabinapal/dabrowser/internal/session"
	"github.com/xabinapal/dabrowser/internal/utils"
)

// Backend delivers notifications.
type Backend interface {
	// Notify sends a standard notification.
	Notify(title, message, iconPath string) error
	// Alert sends an alert notification.
	Alert(title, message, iconPath string) error
}

// desktopBackend sends notifications through beeep.
type desktopBackend struct{}

func (desktopBackend) Notify(title, message, iconPath string) error {
	return beeep.Notify(title, message, iconPath)
}

func (desktopBackend) Alert(title, message, iconPath string) error {
	return beeep.Alert(title, message, iconPath)
}

// Notifier reports session outcomes to the user.
type Notifier interface {
	// NotifySessionEnded reports a browser session that has closed.
	NotifySessionEnded(profile string, duration time.Duration, exitErr error) error
	// NotifyLaunchFailure reports a session that could not be started.
	NotifyLaunchFailure(profile string, err error) error
}

// Option configures a Notifier.
type Option func(*notifier)

// WithBackend sets a custom notification backend (for testing).
func WithBackend(backend Backend) Option {
	return func(n *notifier) {
		n.backend = backend
	}
}

type notifier struct {
	onEnd     bool
	onFailure bool
	backend   Backend
}

func (n *notifier) NotifySessionEnded(profile string, duration time.Duration, exitErr error) error {
	if !n.onEnd {
		return nil
	}

	title := "DaBrowser: Session Ended"
	message := fmt.Sprintf("Browser for '%s' closed after %s.", profile, utils.FormatDuration(duration))
	if exitErr != nil {
		message += fmt.Sprintf("\nExit: %v", exitErr)
	}

	return n.backend.Notify(title, message, "")
}

func (n *notifier) NotifyLaunchFailure(profile string, err error) error {
	if !n.onFailure {
		return nil
	}

	title := "DaBrowser: Launch Failed"
	message := fmt.Sprintf("Could not start the browser for '%s'.\nError: %v", profile, err)

	return n.backend.Alert(title, message, "")
}

// New creates a Notifier from the configuration.
func New(cfg config.NotificationConfig, opts ...Option) Notifier {
	n := &notifier{
		onEnd:     cfg.Enabled && cfg.OnSessionEnd,
		onFailure: cfg.Enabled && cfg.OnLaunchFailure,
		backend:   desktopBackend{},
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Observer forwards session events to n. Delivery errors are logged, never
// returned to the launcher.
func Observer(n Notifier, log logrus.FieldLogger) session.Observer {
	return &observer{n: n, log: log}
}

type observer struct {
	n   Notifier
	log logrus.FieldLogger
}

func (o *observer) SessionStarted(session.Event) {}

func (o *observer) SessionEnded(e session.Event) {
	if err := o.n.NotifySessionEnded(e.ProfileName, e.Duration, e.Err); err != nil {
		o.log.WithError(err).WithField(logging.FieldProfile, e.ProfileID).Debug("Desktop notification failed")
	}
}

func (o *observer) SessionFailed(e session.Event) {
	if err := o.n.NotifyLaunchFailure(e.ProfileName, e.Err); err != nil {
		o.log.WithError(err).WithField(logging.FieldProfile, e.ProfileID).Debug("Desktop notification failed")
	}
}
