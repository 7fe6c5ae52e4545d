//go:build windows

package browser

import (
	"os"
	"os/exec"
)

// Windows has no SIGTERM; termination is always a kill.
var terminateSignal os.Signal = os.Kill

func setProcessGroup(*exec.Cmd) {}

func signalGroup(p *os.Process, sig os.Signal) error {
	if sig == os.Kill {
		return p.Kill()
	}
	return p.Signal(sig)
}

// ProcessAlive reports whether a process with the given pid exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
