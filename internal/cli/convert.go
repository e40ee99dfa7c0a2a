package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/pkg/partybook"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

func newConvertCmd(f *rootFlags) *cobra.Command {
	var (
		confirm   bool
		checkOnly bool
	)
	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Convert a prospect into a customer",
		Long: "Convert creates the customer in the secondary system and links it to the\n" +
			"party. Missing contact details are warnings; pass --yes to proceed anyway.",
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return f.withService(func(svc *partybook.Service) error {
				if checkOnly {
					check, err := svc.Check(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if f.jsonMode {
						return printJSON(out, check)
					}
					printCheck(out, check)
					return nil
				}

				res, err := svc.Convert(cmd.Context(), args[0], confirm)
				var cerr *types.ConversionError
				if errors.As(err, &cerr) && cerr.Stage == types.StageNeedsConfirmation {
					return fmt.Errorf("%w (rerun with --yes to convert anyway)", err)
				}
				if err != nil {
					return err
				}
				if f.jsonMode {
					return printJSON(out, res)
				}
				for _, w := range res.Warnings {
					fmt.Fprintln(out, "warning:", w)
				}
				fmt.Fprintf(out, "Converted %s to %s (%s id %s)\n", res.View.ID, res.View.Kind, res.Ref.System, res.Ref.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "convert even when contact details are missing")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "only report blocking problems and warnings")
	return cmd
}
