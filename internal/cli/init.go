package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/internal/config"
	"github.com/mesh-intelligence/partybook/internal/paths"
	"github.com/mesh-intelligence/partybook/pkg/partybook"
)

func newInitCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize partybook storage",
		Long:  "Create the configuration directory and config.yaml, then create the store schema.",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := paths.ResolveConfigDir(f.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			// Only an explicit --data-dir is recorded in a fresh config.yaml.
			if _, err := config.WriteDefault(configDir, f.dataDir); err != nil {
				return err
			}
			cfg, err := f.settings()
			if err != nil {
				return err
			}

			svc, err := partybook.Open(cfg.Store, cfg.Bridge)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := svc.Close(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Partybook initialized (%s store in %s)\n", cfg.Store.Backend, cfg.Store.DataDir)
			return nil
		},
	}
}
