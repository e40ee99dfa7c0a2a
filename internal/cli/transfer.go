package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/pkg/partybook"
)

func newExportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every table to <dir>/<table>.jsonl",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withService(func(svc *partybook.Service) error {
				counts, err := svc.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printCounts(cmd.OutOrStdout(), f.jsonMode, "exported", counts)
			})
		},
	}
}

func newImportCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <dir>",
		Short: "Load JSONL files written by export, skipping rows already stored",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withService(func(svc *partybook.Service) error {
				counts, err := svc.Import(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printCounts(cmd.OutOrStdout(), f.jsonMode, "imported", counts)
			})
		},
	}
}

func newBridgeConfigCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bridge-config",
		Short: "Query the secondary system's configuration through the bridge",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withService(func(svc *partybook.Service) error {
				cfg, err := svc.QueryBridgeConfig(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cfg)
			})
		},
	}
}
