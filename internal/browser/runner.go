package browser

import (
	"io"
	"os"
	"os/exec"
)

// CommandRunner is an interface for executing commands.
// This allows mocking in tests without actually executing binaries.
type CommandRunner interface {
	// LookPath finds the executable in PATH
	LookPath(file string) (string, error)
	// Command creates a command that can be executed
	Command(name string, args ...string) Command
}

// Command represents an executable command.
type Command interface {
	// SetEnv sets the environment variables
	SetEnv(env []string)
	// SetStdout sets the stdout writer, nil is the null device
	SetStdout(stdout io.Writer)
	// SetStderr sets the stderr writer, nil is the null device
	SetStderr(stderr io.Writer)
	// Start starts the command in its own process group
	Start() error
	// Wait waits for the command to complete
	Wait() error
	// Process returns the underlying process
	Process() ProcessHandle
}

// ProcessHandle represents a started OS process.
type ProcessHandle interface {
	// Pid returns the process id
	Pid() int
	// Signal sends a signal to the process and every process in its group
	Signal(sig os.Signal) error
	// Kill force-kills the process group
	Kill() error
}

// realCommandRunner is the real implementation using os/exec.
type realCommandRunner struct{}

// NewCommandRunner creates a new real command runner.
func NewCommandRunner() CommandRunner {
	return &realCommandRunner{}
}

func (r *realCommandRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (r *realCommandRunner) Command(name string, args ...string) Command {
	// #nosec G204 - name is a resolved browser executable, args are built by BuildArgs
	cmd := exec.Command(name, args...)
	setProcessGroup(cmd)
	return &realCommand{cmd: cmd}
}

// realCommand wraps exec.Cmd to implement the Command interface.
type realCommand struct {
	cmd *exec.Cmd
}

func (c *realCommand) SetEnv(env []string) {
	c.cmd.Env = env
}

func (c *realCommand) SetStdout(stdout io.Writer) {
	c.cmd.Stdout = stdout
}

func (c *realCommand) SetStderr(stderr io.Writer) {
	c.cmd.Stderr = stderr
}

func (c *realCommand) Start() error {
	return c.cmd.Start()
}

func (c *realCommand) Wait() error {
	return c.cmd.Wait()
}

func (c *realCommand) Process() ProcessHandle {
	if c.cmd.Process == nil {
		return nil
	}
	return &realProcess{proc: c.cmd.Process}
}

// realProcess wraps os.Process to implement the ProcessHandle interface.
type realProcess struct {
	proc *os.Process
}

func (p *realProcess) Pid() int {
	return p.proc.Pid
}

func (p *realProcess) Signal(sig os.Signal) error {
	return signalGroup(p.proc, sig)
}

func (p *realProcess) Kill() error {
	return signalGroup(p.proc, os.Kill)
}
