package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xabinapal/dabrowser/internal/profile"
)

// ProfileListOutput represents profile list output for JSON.
type ProfileListOutput struct {
	Count    int            `json:"count"`
	Profiles []profile.Info `json:"profiles"`
}

// newProfileCmd creates the profile command group.
func (cli *CLI) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage browsing profiles",
		Long: `Manage browsing profiles and the proxies they use.

Profiles are referenced by id, a unique id prefix, or name.

Proxies are written as HOST:PORT or HOST:PORT:USER:PASS. Everything after
the third colon is the password, so passwords may contain colons.

Examples:
  # List all profiles
  dabrowser profile list

  # Add a profile behind an authenticated proxy
  dabrowser profile add Work --proxy 10.0.0.1:3128:alice:secret

  # Change the proxy of a profile
  dabrowser profile edit Work --proxy 10.0.0.2:8080

  # Remove a profile and its browser data
  dabrowser profile remove Work`,
	}

	cmd.AddCommand(
		cli.newProfileListCmd(),
		cli.newProfileAddCmd(),
		cli.newProfileEditCmd(),
		cli.newProfileRemoveCmd(),
		cli.newProfileToggleCmd(),
		cli.newProfileShowCmd(),
		cli.newProfileWatchCmd(),
	)

	return cmd
}

// newProfileListCmd creates the profile list command.
func (cli *CLI) newProfileListCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			return cli.renderProfiles(reg.List(), search)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show profiles whose name, proxy host or port matches")

	return cmd
}

// renderProfiles prints the profile table, or JSON, filtered by search.
func (cli *CLI) renderProfiles(all []profile.Profile, search string) error {
	profiles := profile.Filter(all, search)
	data := ProfileListOutput{
		Count:    len(profiles),
		Profiles: profile.Infos(profiles),
	}

	return cli.output().Write(data, func(out io.Writer) {
		writeProfileTable(out, profiles, len(all) == 0)
	})
}

func writeProfileTable(out io.Writer, profiles []profile.Profile, empty bool) {
	if empty {
		fmt.Fprintln(out, "No profiles configured.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Add a profile with: dabrowser profile add <name> --proxy HOST:PORT[:USER:PASS]")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, " \tNAME\tID\tPROXY")
	for _, p := range profiles {
		proxy := p.Proxy.Address()
		if proxy == "" {
			proxy = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", statusDot(p.Active), p.Name, p.ShortID(), proxy)
	}
	// #nosec G104 - Flush error on stdout; if write fails, user will see incomplete output
	_ = w.Flush()

	fmt.Fprintf(out, "\n%s\n", plural(len(profiles), "Profile"))
}

// newProfileAddCmd creates the profile add command.
func (cli *CLI) newProfileAddCmd() *cobra.Command {
	var proxyFlag string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a new profile",
		Long: `Add a new browsing profile.

Examples:
  # Profile without a proxy
  dabrowser profile add Direct

  # Profile behind an open proxy
  dabrowser profile add Office --proxy 192.0.2.10:8080

  # Profile behind an authenticated proxy
  dabrowser profile add Work --proxy 10.0.0.1:3128:alice:secret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proxy, err := parseProxyFlag(proxyFlag)
			if err != nil {
				return err
			}

			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}

			p, err := reg.Create(cmd.Context(), args[0], proxy)
			if err != nil {
				return err
			}

			return cli.output().Write(profile.InfoOf(p), func(out io.Writer) {
				fmt.Fprintf(out, "Added profile %q (%s)\n", p.Name, p.ShortID())
			})
		},
	}

	cmd.Flags().StringVarP(&proxyFlag, "proxy", "p", "", "Proxy as HOST:PORT or HOST:PORT:USER:PASS")

	return cmd
}

// parseProxyFlag parses a --proxy value. Empty means no proxy.
func parseProxyFlag(s string) (profile.Proxy, error) {
	if strings.TrimSpace(s) == "" {
		return profile.Proxy{}, nil
	}
	return profile.ParseProxy(s)
}

// newProfileEditCmd creates the profile edit command.
func (cli *CLI) newProfileEditCmd() *cobra.Command {
	var nameFlag, proxyFlag string

	cmd := &cobra.Command{
		Use:   "edit <profile>",
		Short: "Edit an existing profile",
		Long: `Edit the name or proxy of a profile. Unspecified fields are kept.
Pass --proxy "" to remove the proxy.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("proxy") {
				return errors.New("nothing to change: use --name and/or --proxy")
			}

			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			name := p.Name
			if cmd.Flags().Changed("name") {
				name = nameFlag
			}
			proxy := p.Proxy
			if cmd.Flags().Changed("proxy") {
				if proxy, err = parseProxyFlag(proxyFlag); err != nil {
					return err
				}
			}

			updated, err := reg.Edit(cmd.Context(), p.ID, name, proxy)
			if err != nil {
				return err
			}

			return cli.output().Write(profile.InfoOf(updated), func(out io.Writer) {
				fmt.Fprintf(out, "Updated profile %q\n", updated.Name)
				if updated.Active {
					fmt.Fprintln(out, "The running session keeps its old settings until it is relaunched.")
				}
			})
		},
	}

	cmd.Flags().StringVarP(&nameFlag, "name", "n", "", "New profile name")
	cmd.Flags().StringVarP(&proxyFlag, "proxy", "p", "", "New proxy as HOST:PORT or HOST:PORT:USER:PASS")

	return cmd
}

// newProfileRemoveCmd creates the profile remove command.
func (cli *CLI) newProfileRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "remove <profile>",
		Aliases:           []string{"rm", "delete"},
		Short:             "Remove a profile and its browser data",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			if err := cli.newLauncher(reg, nil).Forget(cmd.Context(), p.ID); err != nil {
				return err
			}

			return cli.output().Write(profile.InfoOf(p), func(out io.Writer) {
				fmt.Fprintf(out, "Removed profile %q\n", p.Name)
			})
		},
	}
}

// newProfileToggleCmd creates the profile toggle command.
func (cli *CLI) newProfileToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <profile>",
		Short: "Flip the active flag of a profile",
		Long: `Flip the active flag of a profile by hand.

The flag is normally managed by 'dabrowser launch'. Use this to clear a flag
left behind by a browser that was killed outside DaBrowser.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			p, err = reg.Toggle(cmd.Context(), p.ID)
			if err != nil {
				return err
			}

			state := "inactive"
			if p.Active {
				state = "active"
			}
			return cli.output().Write(profile.InfoOf(p), func(out io.Writer) {
				fmt.Fprintf(out, "Profile %q is now %s\n", p.Name, state)
			})
		},
	}
}

// newProfileShowCmd creates the profile show command.
func (cli *CLI) newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <profile>",
		Aliases:           []string{"status"},
		Short:             "Show profile details",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: cli.completeProfiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.openRegistry(cmd.Context())
			if err != nil {
				return err
			}
			p, err := reg.Resolve(args[0])
			if err != nil {
				return err
			}

			status := profile.StatusOf(p)
			return cli.output().Write(status, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Name:\t%s\n", status.Name)
				fmt.Fprintf(w, "ID:\t%s\n", status.ID)
				fmt.Fprintf(w, "Active:\t%s %t\n", statusDot(status.Active), status.Active)
				fmt.Fprintf(w, "Strategy:\t%s\n", status.Strategy)
				if status.Proxy != "" {
					fmt.Fprintf(w, "Proxy:\t%s\n", status.Proxy)
				}
				if status.Auth {
					fmt.Fprintf(w, "Username:\t%s\n", status.Username)
					fmt.Fprintf(w, "Password:\t%s\n", status.Password)
				}
				// #nosec G104 - Flush error on stdout; if write fails, user will see incomplete output
				_ = w.Flush()
			})
		},
	}
}

// completeProfiles completes profile names.
func (cli *CLI) completeProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || cli.Config == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	reg, err := cli.openRegistry(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for _, p := range reg.List() {
		if strings.HasPrefix(strings.ToLower(p.Name), strings.ToLower(toComplete)) {
			names = append(names, p.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
