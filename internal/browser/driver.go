// Package browser finds and starts Chromium-family browsers.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xabinapal/dabrowser/internal/logging"
)

// DefaultGrace is how long a terminated browser gets before it is killed.
const DefaultGrace = 5 * time.Second

// Process is a running browser session.
type Process interface {
	// PID returns the browser's process id.
	PID() int
	// Wait blocks until the browser exits. It may be called more than once.
	Wait() error
	// Terminate asks the browser to exit, or kills it when force is set.
	Terminate(force bool) error
}

// Driver starts browser processes.
type Driver interface {
	Start(ctx context.Context, spec LaunchSpec) (Process, error)
}

type options struct {
	runner CommandRunner
	log    logrus.FieldLogger
	grace  time.Duration
	env    []string
}

// Option configures the driver and executable lookup.
type Option func(*options)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(o *options) {
		o.runner = runner
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithGrace sets the delay between terminate and kill on cancellation.
func WithGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.grace = d
		}
	}
}

// WithEnviron sets the browser environment. The default inherits the
// current one.
func WithEnviron(env []string) Option {
	return func(o *options) {
		o.env = env
	}
}

func newOptions(opts []Option) options {
	o := options{
		runner: NewCommandRunner(),
		log:    logrus.StandardLogger(),
		grace:  DefaultGrace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ExecDriver starts browsers as child processes.
type ExecDriver struct {
	opts options
}

// NewExecDriver creates a driver backed by os/exec.
func NewExecDriver(opts ...Option) *ExecDriver {
	return &ExecDriver{opts: newOptions(opts)}
}

// Start launches the browser described by spec. Cancelling ctx terminates
// the browser, then kills it after the grace period. Wait still returns in
// that case.
func (d *ExecDriver) Start(ctx context.Context, spec LaunchSpec) (Process, error) {
	if spec.Executable == "" {
		return nil, ErrBrowserNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := d.opts.runner.Command(spec.Executable, BuildArgs(spec)...)
	if d.opts.env != nil {
		cmd.SetEnv(d.opts.env)
	}
	// Browser logging is noise for the user; nil stdio is the null device.
	cmd.SetStdout(nil)
	cmd.SetStderr(nil)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Executable, err)
	}

	p := &execProcess{
		cmd:   cmd,
		done:  make(chan struct{}),
		grace: d.opts.grace,
		log:   d.opts.log,
	}
	if h := cmd.Process(); h != nil {
		p.pid = h.Pid()
	}

	d.opts.log.WithFields(logrus.Fields{
		logging.FieldPID: p.pid,
		"executable":     spec.Executable,
	}).Debug("Browser started")

	go p.supervise(ctx)
	return p, nil
}

type execProcess struct {
	cmd   Command
	pid   int
	grace time.Duration
	log   logrus.FieldLogger

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

func (p *execProcess) PID() int { return p.pid }

func (p *execProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		close(p.done)
	})
	<-p.done
	return p.waitErr
}

func (p *execProcess) Terminate(force bool) error {
	h := p.cmd.Process()
	if h == nil {
		return nil
	}
	var err error
	if force {
		err = h.Kill()
	} else {
		err = h.Signal(terminateSignal)
	}
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// supervise enforces cancellation until the process exits.
func (p *execProcess) supervise(ctx context.Context) {
	select {
	case <-p.done:
		return
	case <-ctx.Done():
	}

	log := p.log.WithField(logging.FieldPID, p.pid)
	log.Info("Terminating browser")
	if err := p.Terminate(false); err != nil {
		log.WithError(err).Debug("Terminate failed")
	}

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-p.done:
	case <-timer.C:
		log.Warn("Browser did not exit in time, killing")
		if err := p.Terminate(true); err != nil {
			log.WithError(err).Debug("Kill failed")
		}
	}
}
