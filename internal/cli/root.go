// Package cli provides the command-line interface for DaBrowser.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xabinapal/dabrowser/internal/config"
	"github.com/xabinapal/dabrowser/internal/keyring"
	"github.com/xabinapal/dabrowser/internal/logging"
	"github.com/xabinapal/dabrowser/internal/profile"
	"github.com/xabinapal/dabrowser/internal/store"
)

// CLI holds the application state for the CLI.
type CLI struct {
	Config  *config.Config
	Paths   config.Paths
	Keyring keyring.Store
	Log     *logging.Logger
	rootCmd *cobra.Command
	out     io.Writer

	// Opened on first use by commands that need profiles.
	store    store.Store
	registry *profile.Registry

	// Flags
	verboseFlag bool
	outputFlag  string
	configFlag  string
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{
		Keyring: keyring.DefaultStore(),
		out:     os.Stdout,
	}

	cli.rootCmd = &cobra.Command{
		Use:   "dabrowser [command]",
		Short: "DaBrowser - isolated browser sessions behind per-profile proxies",
		Long: `DaBrowser manages named browsing profiles, each bound to an HTTP proxy,
and launches an isolated Chromium-family browser session per profile.

Proxies that require a username and password are handled by a generated
browser extension, so the browser never prompts for credentials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
	}

	// Global flags
	cli.rootCmd.PersistentFlags().BoolVarP(&cli.verboseFlag, "verbose", "v", false, "Enable verbose output")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json)")
	cli.rootCmd.PersistentFlags().StringVar(&cli.configFlag, "config", "", "Path to the configuration file")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newProfileCmd(),
		cli.newLaunchCmd(),
		cli.newConfigCmd(),
		cli.newDoctorCmd(),
		cli.newCompletionCmd(),
	)
}

// initialize loads configuration and sets up logging.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	if _, err := ParseOutputFormat(cli.outputFlag); err != nil {
		return err
	}

	cli.Paths = config.GetPaths()

	var (
		cfg *config.Config
		err error
	)
	if cli.configFlag != "" {
		cfg, err = config.LoadFrom(cli.configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.Config = cfg

	logCfg := logging.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.File,
		JSON:     cfg.Logging.JSON,
		MaxSize:  int64(cfg.Logging.MaxSize) * 1024 * 1024,
	}
	if cli.verboseFlag {
		logCfg.Level = "debug"
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	cli.Log = log

	return nil
}

// logger returns the configured logger, or a silent one before
// initialization.
func (cli *CLI) logger() logrus.FieldLogger {
	if cli.Log == nil {
		return logging.Discard()
	}
	return cli.Log
}

// secrets returns the keyring when passwords are kept outside the store.
func (cli *CLI) secrets() keyring.Store {
	if cli.Config.Secrets.Backend == config.SecretsBackendKeyring {
		return cli.Keyring
	}
	return nil
}

// openRegistry opens the profile store and loads the registry, seeding it on
// first run.
func (cli *CLI) openRegistry(ctx context.Context) (*profile.Registry, error) {
	if cli.registry != nil {
		return cli.registry, nil
	}

	if err := cli.Paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	log := cli.logger()
	st, err := store.Open(ctx,
		string(cli.Config.Store.Backend),
		cli.Config.StorePath(cli.Paths),
		cli.secrets(),
		store.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}

	reg, err := profile.NewRegistry(ctx, st, profile.WithLogger(log))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if cli.Config.Seed.Enabled && reg.Len() == 0 {
		seeds := make([]profile.Seed, 0, len(cli.Config.Seed.Profiles))
		for _, s := range cli.Config.Seed.Profiles {
			seeds = append(seeds, profile.Seed{Name: s.Name, Proxy: s.Proxy})
		}
		created, err := reg.Seed(ctx, seeds)
		if err != nil {
			log.WithError(err).Warn("Skipping default profiles")
		} else if len(created) > 0 {
			log.WithField("count", len(created)).Info("Created default profiles")
		}
	}

	cli.store = st
	cli.registry = reg
	return reg, nil
}

// close releases everything opened by commands.
func (cli *CLI) close() {
	if cli.store != nil {
		if err := cli.store.Close(); err != nil {
			cli.logger().WithError(err).Warn("Failed to close profile store")
		}
		cli.store = nil
		cli.registry = nil
	}
	if cli.Log != nil {
		_ = cli.Log.Close()
	}
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	defer cli.close()
	return cli.rootCmd.ExecuteContext(ctx)
}

// output returns a writer for the selected output format.
func (cli *CLI) output() *OutputWriter {
	format, err := ParseOutputFormat(cli.outputFlag)
	if err != nil {
		format = OutputFormatText
	}
	return NewOutputWriter(format, cli.out)
}
