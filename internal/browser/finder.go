package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrBrowserNotFound indicates no usable browser executable was found.
var ErrBrowserNotFound = errors.New("browser executable not found")

// candidateNames are looked up in PATH, in order.
var candidateNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"brave-browser",
	"microsoft-edge",
}

// wellKnownPaths returns per-OS install locations checked after PATH.
var wellKnownPaths = func() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		var paths []string
		for _, env := range []string{"PROGRAMFILES", "PROGRAMFILES(X86)", "LOCALAPPDATA"} {
			base := os.Getenv(env)
			if base == "" {
				continue
			}
			paths = append(paths,
				filepath.Join(base, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(base, "Chromium", "Application", "chrome.exe"),
				filepath.Join(base, "Microsoft", "Edge", "Application", "msedge.exe"),
			)
		}
		return paths
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/opt/google/chrome/chrome",
		}
	}
}

// FindExecutable resolves the browser binary. A configured path is
// authoritative: when it cannot be used the search stops there.
func FindExecutable(customPath string, opts ...Option) (string, error) {
	o := newOptions(opts)

	if customPath != "" {
		if strings.ContainsRune(customPath, os.PathSeparator) || strings.Contains(customPath, "/") {
			if isExecutableFile(customPath) {
				return customPath, nil
			}
			return "", fmt.Errorf("%w: %s", ErrBrowserNotFound, customPath)
		}
		path, err := o.runner.LookPath(customPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrBrowserNotFound, customPath, err)
		}
		return path, nil
	}

	for _, name := range candidateNames {
		if path, err := o.runner.LookPath(name); err == nil {
			return path, nil
		}
	}

	for _, path := range wellKnownPaths() {
		if isExecutableFile(path) {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: tried %s; set browser.path in the config", ErrBrowserNotFound, strings.Join(candidateNames, ", "))
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
