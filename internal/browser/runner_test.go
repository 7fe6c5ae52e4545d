package browser

import (
	"errors"
	"io"
	"os"
	"sync"
)

// mockCommandRunner is a mock implementation of CommandRunner for testing.
type mockCommandRunner struct {
	lookPathFunc func(file string) (string, error)
	startErr     error
	// exitOnSignal makes processes exit on the first terminate signal
	exitOnSignal bool
	commands     []*mockCommand
	mu           sync.Mutex
}

// mockCommand is a mock implementation of Command for testing.
type mockCommand struct {
	runner  *mockCommandRunner
	name    string
	args    []string
	env     []string
	stdout  io.Writer
	stderr  io.Writer
	started bool
	signals []os.Signal
	killed  bool
	exit    chan struct{}
	exitErr error
	once    sync.Once
	mu      sync.Mutex
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{}
}

func (m *mockCommandRunner) LookPath(file string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookPathFunc != nil {
		return m.lookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

func (m *mockCommandRunner) Command(name string, args ...string) Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := &mockCommand{
		runner: m,
		name:   name,
		args:   args,
		exit:   make(chan struct{}),
	}
	m.commands = append(m.commands, cmd)
	return cmd
}

func (m *mockCommandRunner) last() *mockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return nil
	}
	return m.commands[len(m.commands)-1]
}

// setLookPathError sets an error to return from LookPath.
func (m *mockCommandRunner) setLookPathError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookPathFunc = func(string) (string, error) { return "", err }
}

func (c *mockCommand) SetEnv(env []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.env = env
}

func (c *mockCommand) SetStdout(stdout io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stdout = stdout
}

func (c *mockCommand) SetStderr(stderr io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stderr = stderr
}

func (c *mockCommand) Start() error {
	c.runner.mu.Lock()
	err := c.runner.startErr
	c.runner.mu.Unlock()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *mockCommand) Wait() error {
	<-c.exit
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

// finish makes the process exit with err.
func (c *mockCommand) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.exitErr = err
		c.mu.Unlock()
		close(c.exit)
	})
}

func (c *mockCommand) Process() ProcessHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	return &mockProcess{cmd: c}
}

func (c *mockCommand) signalsReceived() ([]os.Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]os.Signal(nil), c.signals...), c.killed
}

// mockProcess is a mock implementation of ProcessHandle.
type mockProcess struct {
	cmd *mockCommand
}

func (p *mockProcess) Pid() int { return 4242 }

func (p *mockProcess) Signal(sig os.Signal) error {
	p.cmd.mu.Lock()
	p.cmd.signals = append(p.cmd.signals, sig)
	p.cmd.mu.Unlock()

	p.cmd.runner.mu.Lock()
	exit := p.cmd.runner.exitOnSignal
	p.cmd.runner.mu.Unlock()
	if exit {
		p.cmd.finish(errors.New("signal: terminated"))
	}
	return nil
}

func (p *mockProcess) Kill() error {
	p.cmd.mu.Lock()
	p.cmd.killed = true
	p.cmd.mu.Unlock()
	p.cmd.finish(errors.New("signal: killed"))
	return nil
}
