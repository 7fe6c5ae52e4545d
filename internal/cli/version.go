package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xabinapal/dabrowser/internal/version"
)

// newVersionCmd creates the version command.
func (cli *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print DaBrowser version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			return cli.output().Write(info, func(w io.Writer) {
				fmt.Fprintln(w, info.String())
			})
		},
	}
}
