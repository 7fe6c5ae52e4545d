package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xabinapal/dabrowser/internal/config"
)

// configPathOutput represents config path output for JSON.
type configPathOutput struct {
	ConfigFile    string `json:"config_file"`
	ConfigDir     string `json:"config_dir"`
	DataDir       string `json:"data_dir"`
	CacheDir      string `json:"cache_dir"`
	StoreFile     string `json:"store_file"`
	SessionsDir   string `json:"sessions_dir"`
	ExtensionsDir string `json:"extensions_dir"`
	ConfigExists  bool   `json:"config_exists"`
}

// validationResult represents validation output for JSON.
type validationResult struct {
	Valid  bool     `json:"valid"`
	File   string   `json:"file"`
	Errors []string `json:"errors,omitempty"`
}

// newConfigCmd creates the config command group.
func (cli *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage DaBrowser configuration",
		Long: `Manage DaBrowser configuration files and settings.

Use 'dabrowser config init' to write a configuration file with defaults.
Use 'dabrowser config path' to see file and directory locations.
Use 'dabrowser config edit' to open the configuration in your editor.`,
	}

	cmd.AddCommand(
		cli.newConfigInitCmd(),
		cli.newConfigPathCmd(),
		cli.newConfigShowCmd(),
		cli.newConfigEditCmd(),
		cli.newConfigValidateCmd(),
	)

	return cmd
}

// newConfigInitCmd creates the config init command.
func (cli *CLI) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default settings",
		Long: `Write a configuration file with default settings.

An existing file is left untouched unless --force is given.

Examples:
  dabrowser config init
  dabrowser config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cli.Config.FilePath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
			}

			cfg := config.DefaultAt(path)
			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Fprintf(cli.out, "Configuration saved to: %s\n", cfg.FilePath())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")

	return cmd
}

// newConfigPathCmd creates the config path command.
func (cli *CLI) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := cli.Paths

			_, configErr := os.Stat(cli.Config.FilePath())
			output := configPathOutput{
				ConfigFile:    cli.Config.FilePath(),
				ConfigDir:     paths.ConfigDir,
				DataDir:       paths.DataDir,
				CacheDir:      paths.CacheDir,
				StoreFile:     cli.Config.StorePath(paths),
				SessionsDir:   paths.SessionsDir,
				ExtensionsDir: paths.ExtensionsDir,
				ConfigExists:  configErr == nil,
			}

			return cli.output().Write(output, func(w io.Writer) {
				fmt.Fprintln(w, "Configuration paths:")
				fmt.Fprintf(w, "  Config file:     %s\n", output.ConfigFile)
				fmt.Fprintf(w, "  Config dir:      %s\n", output.ConfigDir)
				fmt.Fprintf(w, "  Data dir:        %s\n", output.DataDir)
				fmt.Fprintf(w, "  Cache dir:       %s\n", output.CacheDir)
				fmt.Fprintf(w, "  Profile store:   %s\n", output.StoreFile)
				fmt.Fprintf(w, "  Sessions dir:    %s\n", output.SessionsDir)
				fmt.Fprintf(w, "  Extensions dir:  %s\n", output.ExtensionsDir)

				fmt.Fprintln(w, "\nStatus:")
				if output.ConfigExists {
					fmt.Fprintln(w, "  Config file exists")
				} else {
					fmt.Fprintln(w, "  Config file does not exist")
				}
			})
		},
	}
}

// newConfigShowCmd creates the config show command.
func (cli *CLI) newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults and DABROWSER_* environment
overrides have been applied. The output is always YAML.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(cli.Config)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cli.out.Write(data)
			return err
		},
	}
}

// newConfigEditCmd creates the config edit command.
func (cli *CLI) newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open configuration file in editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = os.Getenv("VISUAL")
			}
			if editor == "" {
				for _, e := range []string{"vim", "vi", "nano", "notepad"} {
					if _, err := exec.LookPath(e); err == nil {
						editor = e
						break
					}
				}
			}
			if editor == "" {
				return errors.New("no editor found: set $EDITOR environment variable")
			}

			configPath := cli.Config.FilePath()

			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.DefaultAt(configPath).Save(); err != nil {
					return fmt.Errorf("failed to create config file: %w", err)
				}
			}

			// #nosec G204 - editor is from $EDITOR env var (user-controlled but expected), configPath is from config file path (controlled)
			editorCmd := exec.CommandContext(cmd.Context(), editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr

			return editorCmd.Run()
		},
	}
}

// newConfigValidateCmd creates the config validate command.
func (cli *CLI) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := validationResult{
				Valid: true,
				File:  cli.Config.FilePath(),
			}
			if err := cli.Config.Validate(); err != nil {
				result.Valid = false
				result.Errors = append(result.Errors, err.Error())
			}

			writeErr := cli.output().Write(result, func(w io.Writer) {
				fmt.Fprintf(w, "Configuration file: %s\n", result.File)
				for _, e := range result.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
				fmt.Fprintln(w)
				if result.Valid {
					fmt.Fprintln(w, "Configuration is valid")
				} else {
					fmt.Fprintln(w, "Configuration has errors")
				}
			})
			if writeErr != nil {
				return writeErr
			}

			if !result.Valid {
				return errors.New("configuration has errors")
			}
			return nil
		},
	}
}
