package browser

import (
	"github.com/xabinapal/dabrowser/internal/profile"
)

// LaunchSpec describes one browser start.
type LaunchSpec struct {
	// Executable is the resolved browser binary.
	Executable string
	// UserDataDir isolates cookies, cache and history per profile.
	UserDataDir string
	// Strategy selects how the proxy reaches the browser.
	Strategy profile.Strategy
	// ExtensionDir is the unpacked proxy extension, required for
	// AuthenticatedProxy.
	ExtensionDir string
	LandingURL   string
	ExtraArgs    []string
	NoSandbox    bool
}

// baseArgs are passed to every session.
var baseArgs = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-sync",
	"--disable-session-crashed-bubble",
	"--hide-crash-restore-bubble",
}

// BuildArgs assembles the browser command line for spec.
func BuildArgs(spec LaunchSpec) []string {
	args := make([]string, 0, len(baseArgs)+len(spec.ExtraArgs)+5)
	args = append(args, "--user-data-dir="+spec.UserDataDir)
	args = append(args, baseArgs...)
	if spec.NoSandbox {
		args = append(args, "--no-sandbox")
	}
	args = append(args, spec.ExtraArgs...)

	switch s := spec.Strategy.(type) {
	case profile.PlainProxy:
		args = append(args, "--proxy-server=http://"+s.Address())
	case profile.AuthenticatedProxy:
		if spec.ExtensionDir != "" {
			args = append(args,
				"--load-extension="+spec.ExtensionDir,
				"--disable-features=DisableLoadExtensionCommandLineSwitch",
			)
		}
	}

	if spec.LandingURL != "" {
		args = append(args, spec.LandingURL)
	}
	return args
}
