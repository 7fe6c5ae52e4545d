package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xabinapal/dabrowser/internal/browser"
	"github.com/xabinapal/dabrowser/internal/config"
	"github.com/xabinapal/dabrowser/internal/extension"
	"github.com/xabinapal/dabrowser/internal/keyring"
	"github.com/xabinapal/dabrowser/internal/profile"
)

// CheckResult represents the result of a diagnostic check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// CheckStatus represents the status of a diagnostic check.
type CheckStatus int

const (
	// CheckOK indicates the check passed.
	CheckOK CheckStatus = iota
	// CheckWarning indicates a non-critical issue.
	CheckWarning
	// CheckError indicates a critical failure.
	CheckError
	// CheckSkipped indicates the check was skipped.
	CheckSkipped
)

// String returns the status name.
func (s CheckStatus) String() string {
	switch s {
	case CheckOK:
		return "OK"
	case CheckWarning:
		return "WARN"
	case CheckError:
		return "ERROR"
	case CheckSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Icon returns the status icon for display.
func (s CheckStatus) Icon() string {
	switch s {
	case CheckOK:
		return "[OK]"
	case CheckWarning:
		return "[!!]"
	case CheckError:
		return "[XX]"
	case CheckSkipped:
		return "[--]"
	default:
		return "[??]"
	}
}

// MarshalJSON implements json.Marshaler.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// DoctorOutput represents the doctor command output for JSON.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks"`
	HasErrors   bool          `json:"has_errors"`
	HasWarnings bool          `json:"has_warnings"`
}

// summarize builds the doctor output for a set of results.
func summarize(results []CheckResult) DoctorOutput {
	out := DoctorOutput{Checks: results}
	for _, r := range results {
		switch r.Status {
		case CheckError:
			out.HasErrors = true
		case CheckWarning:
			out.HasWarnings = true
		}
	}
	return out
}

// newDoctorCmd creates the doctor command.
func (cli *CLI) newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify and troubleshoot common issues.

The doctor command checks:
  - Configuration file validity
  - Data directory permissions
  - Profile store
  - Browser executable
  - Keyring availability
  - Proxy extension generation
  - Stale sessions

Use --verbose for suggested fixes.

Examples:
  # Run diagnostics
  dabrowser doctor

  # Run with suggested fixes
  dabrowser doctor --verbose

  # Output as JSON
  dabrowser doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			output := summarize(cli.runDiagnostics(ctx))

			writeErr := cli.output().Write(output, func(w io.Writer) {
				writeDiagnostics(w, output, verbose)
			})
			if writeErr != nil {
				return writeErr
			}

			if output.HasErrors {
				return errors.New("diagnostics failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Show suggested fixes")

	return cmd
}

func writeDiagnostics(w io.Writer, output DoctorOutput, verbose bool) {
	fmt.Fprintln(w, "DaBrowser Diagnostics")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	for _, r := range output.Checks {
		fmt.Fprintf(w, "%s %s", r.Status.Icon(), r.Name)
		if r.Message != "" {
			fmt.Fprintf(w, ": %s", r.Message)
		}
		fmt.Fprintln(w)

		if (r.Status == CheckError || r.Status == CheckWarning) && r.Fix != "" && verbose {
			fmt.Fprintf(w, "      -> %s\n", r.Fix)
		}
	}

	fmt.Fprintln(w)
	switch {
	case output.HasErrors:
		fmt.Fprintln(w, "Some checks failed. Run with --verbose for suggested fixes.")
	case output.HasWarnings:
		fmt.Fprintln(w, "All critical checks passed with some warnings.")
	default:
		fmt.Fprintln(w, "All checks passed!")
	}
}

func (cli *CLI) runDiagnostics(ctx context.Context) []CheckResult {
	results := []CheckResult{
		cli.checkConfigFile(),
		cli.checkDataDirs(),
	}

	storeResult, reg := cli.checkProfileStore(ctx)
	results = append(results,
		storeResult,
		cli.checkBrowser(),
		cli.checkKeyring(),
		cli.checkExtension(ctx),
		cli.checkStaleSessions(reg),
	)

	return results
}

func (cli *CLI) checkConfigFile() CheckResult {
	name := "Configuration file"

	path := cli.Config.FilePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: "not found, using defaults",
			Fix:     "Run 'dabrowser config init' to write a configuration file",
		}
	}

	if err := cli.Config.Validate(); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("invalid: %v", err),
			Fix:     "Run 'dabrowser config validate' to see detailed errors",
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: path,
	}
}

func (cli *CLI) checkDataDirs() CheckResult {
	name := "Data directories"

	if err := cli.Paths.EnsureDirs(); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("cannot create: %v", err),
			Fix:     fmt.Sprintf("Check permissions of %s or set %s", cli.Paths.DataDir, config.DataDirEnvVar),
		}
	}

	for _, dir := range []string{cli.Paths.SessionsDir, cli.Paths.ExtensionsDir, cli.Paths.RunDir} {
		f, err := os.CreateTemp(dir, ".doctor-*")
		if err != nil {
			return CheckResult{
				Name:    name,
				Status:  CheckError,
				Message: fmt.Sprintf("%s is not writable: %v", dir, err),
				Fix:     fmt.Sprintf("Check permissions of %s", dir),
			}
		}
		_ = f.Close()
		_ = os.Remove(f.Name())
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: cli.Paths.DataDir,
	}
}

func (cli *CLI) checkProfileStore(ctx context.Context) (CheckResult, *profile.Registry) {
	name := "Profile store"
	path := cli.Config.StorePath(cli.Paths)

	reg, err := cli.openRegistry(ctx)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("cannot open %s: %v", path, err),
			Fix:     "Check store.backend and store.path in the configuration",
		}, nil
	}

	if reg.Len() == 0 {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("%s (no profiles)", path),
			Fix:     "Run 'dabrowser profile add <name> --proxy HOST:PORT' to create a profile",
		}, reg
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: fmt.Sprintf("%s (%s)", path, plural(reg.Len(), "profile")),
	}, reg
}

func (cli *CLI) checkBrowser() CheckResult {
	name := "Browser"

	if err := cli.Config.Browser.ValidatePath(); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: err.Error(),
			Fix:     "Fix browser.path in the configuration, or remove it to search automatically",
		}
	}

	path, err := browser.FindExecutable(cli.Config.Browser.Path)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: err.Error(),
			Fix:     "Install Chromium or Google Chrome, or set browser.path in the configuration",
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: path,
	}
}

func (cli *CLI) checkKeyring() CheckResult {
	name := "Keyring"

	if cli.Config.Secrets.Backend != config.SecretsBackendKeyring {
		return CheckResult{
			Name:    name,
			Status:  CheckSkipped,
			Message: "passwords are kept in the profile store",
		}
	}

	if err := cli.Keyring.IsAvailable(); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("unavailable: %v", err),
			Fix:     "Install and configure a keyring service (gnome-keyring, kwallet, or macOS Keychain), or set secrets.backend to file",
		}
	}

	var keyringType string
	switch cli.Keyring.(type) {
	case *keyring.FileStore:
		keyringType = "file-based (test mode)"
	default:
		keyringType = "OS keyring"
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: keyringType,
	}
}

// checkExtension builds a throwaway proxy extension and reads it back.
func (cli *CLI) checkExtension(ctx context.Context) CheckResult {
	name := "Proxy extension"

	dir, err := os.MkdirTemp("", "dabrowser-doctor-*")
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("cannot create temp dir: %v", err),
		}
	}
	defer os.RemoveAll(dir)

	want := profile.Proxy{Host: "127.0.0.1", Port: "3128", Username: "doctor", Password: "check"}
	artifact, err := extension.NewBuilder(dir).Build(ctx, want, "doctor", "check")
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("build failed: %v", err),
		}
	}

	if err := extension.Unpack(artifact, filepath.Join(dir, "unpacked")); err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("unpack failed: %v", err),
		}
	}

	got, err := extension.Inspect(artifact.Path)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("cannot read generated extension: %v", err),
		}
	}
	if got != want {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: "generated extension carries the wrong proxy settings",
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: "generated and verified",
	}
}

// checkStaleSessions reports profiles marked active without a running browser.
func (cli *CLI) checkStaleSessions(reg *profile.Registry) CheckResult {
	name := "Sessions"

	if reg == nil {
		return CheckResult{
			Name:    name,
			Status:  CheckSkipped,
			Message: "profile store unavailable",
		}
	}

	launcher := cli.newLauncher(reg, nil)

	var running, stale int
	for _, p := range reg.List() {
		switch {
		case launcher.IsRunning(p.ID):
			running++
		case p.Active:
			stale++
		}
	}

	if stale > 0 {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("%s marked active without a running browser", plural(stale, "profile")),
			Fix:     "Run 'dabrowser profile toggle <profile>' or launch any profile to clear stale flags",
		}
	}

	return CheckResult{
		Name:    name,
		Status:  CheckOK,
		Message: fmt.Sprintf("%d running", running),
	}
}
