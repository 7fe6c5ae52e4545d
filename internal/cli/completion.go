package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command.
func (cli *CLI) newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for DaBrowser.

To load completions:

Bash:
  $ source <(dabrowser completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ dabrowser completion bash > /etc/bash_completion.d/dabrowser
  # macOS:
  $ dabrowser completion bash > $(brew --prefix)/etc/bash_completion.d/dabrowser

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ dabrowser completion zsh > "${fpath[1]}/_dabrowser"
  # You may need to start a new shell for this to take effect.

Fish:
  $ dabrowser completion fish | source
  # To load completions for each session, execute once:
  $ dabrowser completion fish > ~/.config/fish/completions/dabrowser.fish

PowerShell:
  PS> dabrowser completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> dabrowser completion powershell > dabrowser.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(cli.out)
			case "zsh":
				return cmd.Root().GenZshCompletion(cli.out)
			case "fish":
				return cmd.Root().GenFishCompletion(cli.out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(cli.out)
			}
			return nil
		},
	}
	return cmd
}
