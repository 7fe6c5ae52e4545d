package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/xabinapal/dabrowser/internal/browser"
	"github.com/xabinapal/dabrowser/internal/extension"
	"github.com/xabinapal/dabrowser/internal/notify"
	"github.com/xabinapal/dabrowser/internal/profile"
	"github.com/xabinapal/dabrowser/internal/session"
	"github.com/xabinapal/dabrowser/internal/store"
	"github.com/xabinapal/dabrowser/internal/utils"
)

// LaunchResult represents one finished session for JSON output.
type LaunchResult struct {
	Profile  string `json:"profile"`
	Name     string `json:"name"`
	Launch   string `json:"launch,omitempty"`
	PID      int    `json:"pid,omitempty"`
	State    string `json:"state"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// newLauncher builds a session launcher over reg. driver may be nil for
// callers that never start a browser.
func (cli *CLI) newLauncher(reg *profile.Registry, driver browser.Driver, opts ...session.Option) *session.Launcher {
	base := []session.Option{session.WithLogger(cli.logger())}
	if f, ok := cli.store.(store.Forgetter); ok {
		base = append(base, session.WithSecretForgetter(f))
	}
	return session.NewLauncher(
		reg,
		driver,
		extension.NewBuilder(cli.Paths.ExtensionsDir),
		session.LayoutFromPaths(cli.Paths),
		append(base, opts...)...,
	)
}

// newLaunchCmd creates the launch command.
func (cli *CLI) newLaunchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch <profile>...",
		Short: "Open browser sessions for profiles",
		Long: `Open an isolated browser session for each given profile and wait until
all of them are closed.

Each profile gets its own browser data directory. Authenticated proxies are
configured through a generated extension. Profiles are marked active while
their browser runs. Press Ctrl+C to close every session.

Examples:
  # Launch one profile
  dabrowser launch Work

  # Launch several profiles side by side
  dabrowser launch Work Personal 3f2a`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: cli.completeProfiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			reg, err := cli.openRegistry(ctx)
			if err != nil {
				return err
			}

			var targets []profile.Profile
			seen := make(map[string]bool)
			for _, ref := range args {
				p, err := reg.Resolve(ref)
				if err != nil {
					return err
				}
				if !seen[p.ID] {
					seen[p.ID] = true
					targets = append(targets, p)
				}
			}

			if err := cli.Config.Browser.ValidatePath(); err != nil {
				return err
			}
			executable, err := browser.FindExecutable(cli.Config.Browser.Path)
			if err != nil {
				return err
			}

			driver := browser.NewExecDriver(
				browser.WithLogger(cli.logger()),
				browser.WithGrace(cli.Config.Browser.TerminateGrace),
			)

			out := cli.output()
			redraw := &redrawObserver{cli: cli, reg: reg, out: out}
			launcher := cli.newLauncher(reg, driver,
				session.WithLaunchDefaults(browser.LaunchSpec{
					Executable: executable,
					LandingURL: cli.Config.Browser.LandingURL,
					ExtraArgs:  cli.Config.Browser.ExtraArgs,
					NoSandbox:  cli.Config.Browser.NoSandbox,
				}),
				session.WithObserver(redraw),
				session.WithObserver(notify.Observer(notify.New(cli.Config.Notifications), cli.logger())),
			)

			if _, err := launcher.Recover(ctx); err != nil {
				cli.logger().WithError(err).Warn("Failed to recover stale sessions")
			}

			var launchErrs []error
			for _, p := range targets {
				h, err := launcher.Launch(ctx, p.ID)
				if err != nil {
					launchErrs = append(launchErrs, fmt.Errorf("%s: %w", p.Name, err))
					continue
				}
				if !out.IsJSON() {
					redraw.printf("Launched %q (pid %d)\n", p.Name, h.PID())
				}
			}

			launcher.Wait()

			if out.IsJSON() {
				if err := out.WriteJSON(redraw.results()); err != nil {
					return err
				}
			}
			return errors.Join(launchErrs...)
		},
	}

	return cmd
}

// redrawObserver reprints the profile list after every session ends.
type redrawObserver struct {
	cli *CLI
	reg *profile.Registry
	out *OutputWriter

	mu    sync.Mutex
	ended []LaunchResult
}

func (r *redrawObserver) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.cli.out, format, args...)
}

func (r *redrawObserver) SessionStarted(session.Event) {}

func (r *redrawObserver) SessionEnded(e session.Event) {
	r.record(e)
	if r.out.IsJSON() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.cli.out, "\nSession for %q ended after %s\n\n", e.ProfileName, utils.FormatDuration(e.Duration))
	r.renderLocked(r.cli.out)
}

func (r *redrawObserver) SessionFailed(e session.Event) {
	r.record(e)
}

func (r *redrawObserver) renderLocked(w io.Writer) {
	profiles := r.reg.List()
	writeProfileTable(w, profiles, len(profiles) == 0)
}

func (r *redrawObserver) record(e session.Event) {
	res := LaunchResult{
		Profile: e.ProfileID,
		Name:    e.ProfileName,
		Launch:  e.LaunchID,
		PID:     e.PID,
		State:   e.State.String(),
	}
	if e.Duration > 0 {
		res.Duration = utils.FormatDuration(e.Duration)
	}
	if e.Err != nil {
		res.Error = e.Err.Error()
	}

	r.mu.Lock()
	r.ended = append(r.ended, res)
	r.mu.Unlock()
}

func (r *redrawObserver) results() []LaunchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LaunchResult(nil), r.ended...)
}
