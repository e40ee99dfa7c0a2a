package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/pkg/partybook"
)

const modulePath = "github.com/mesh-intelligence/partybook"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the partybook version",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "partybook v%s\nmodule: %s\n", partybook.Version, modulePath)
			return nil
		},
	}
}
