package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/pkg/partybook"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Field flags shared by create and update.
const (
	flagFirstName  = "first-name"
	flagLastName   = "last-name"
	flagEmail      = "email"
	flagPhone      = "phone"
	flagLine1      = "line1"
	flagLine2      = "line2"
	flagCity       = "city"
	flagRegion     = "region"
	flagPostalCode = "postal-code"
	flagCountry    = "country"
	flagAttr       = "attr"
	flagFrom       = "from"
)

var fieldUsage = []struct{ name, usage string }{
	{flagFirstName, "first name"},
	{flagLastName, "last name"},
	{flagEmail, "primary email address"},
	{flagPhone, "primary phone number"},
	{flagLine1, "address line 1"},
	{flagLine2, "address line 2"},
	{flagCity, "city"},
	{flagRegion, "region or state"},
	{flagPostalCode, "postal code"},
	{flagCountry, "country"},
}

func addFieldFlags(cmd *cobra.Command) {
	for _, fl := range fieldUsage {
		cmd.Flags().String(fl.name, "", fl.usage)
	}
	cmd.Flags().StringToString(flagAttr, nil, "attribute category=value (repeatable)")
	cmd.Flags().String(flagFrom, "", "read fields from a JSON file, - for stdin; flags override it")
}

// readFrom decodes the --from JSON document into dst when the flag is set.
func readFrom(cmd *cobra.Command, dst any) error {
	path, _ := cmd.Flags().GetString(flagFrom)
	if path == "" {
		return nil
	}
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		defer fh.Close()
		r = fh
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errUsage, path, err)
	}
	return nil
}

// inputFields maps field flags to Input fields.
func inputFields(in *types.Input) map[string]*string {
	return map[string]*string{
		flagFirstName: &in.FirstName, flagLastName: &in.LastName,
		flagEmail: &in.Email, flagPhone: &in.Phone,
		flagLine1: &in.Line1, flagLine2: &in.Line2, flagCity: &in.City,
		flagRegion: &in.Region, flagPostalCode: &in.PostalCode, flagCountry: &in.Country,
	}
}

// patchFields maps field flags to Patch fields.
func patchFields(p *types.Patch) map[string]*types.Optional {
	return map[string]*types.Optional{
		flagFirstName: &p.FirstName, flagLastName: &p.LastName,
		flagEmail: &p.Email, flagPhone: &p.Phone,
		flagLine1: &p.Line1, flagLine2: &p.Line2, flagCity: &p.City,
		flagRegion: &p.Region, flagPostalCode: &p.PostalCode, flagCountry: &p.Country,
	}
}

// buildInput reads --from, then applies every changed field flag.
func buildInput(cmd *cobra.Command) (types.Input, error) {
	var in types.Input
	if err := readFrom(cmd, &in); err != nil {
		return in, err
	}
	for name, dst := range inputFields(&in) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
	if cmd.Flags().Changed(flagAttr) {
		attrs, _ := cmd.Flags().GetStringToString(flagAttr)
		if in.Attributes == nil {
			in.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			in.Attributes[k] = v
		}
	}
	return in, nil
}

// buildPatch is buildInput for updates: only flags the user passed are
// supplied, so --email "" clears the email while omitting --email keeps it.
func buildPatch(cmd *cobra.Command) (types.Patch, error) {
	var p types.Patch
	if err := readFrom(cmd, &p); err != nil {
		return p, err
	}
	for name, dst := range patchFields(&p) {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = types.Some(v)
		}
	}
	if cmd.Flags().Changed(flagAttr) {
		attrs, _ := cmd.Flags().GetStringToString(flagAttr)
		if p.Attributes == nil {
			p.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			p.Attributes[k] = v
		}
	}
	return p, nil
}

func newCreateCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a prospect",
		Example: `  partybook create --first-name Jane --last-name Doe --email jane@example.com
  partybook create --from jane.json --attr industry=Retail`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := buildInput(cmd)
			if err != nil {
				return err
			}
			return f.withService(func(svc *partybook.Service) error {
				v, err := svc.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printView(cmd.OutOrStdout(), f.jsonMode, v)
			})
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newUpdateCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of a party",
		Long: "Update writes only the fields given on the command line or in --from.\n" +
			"Passing a flag with an empty value clears that field.",
		Example: `  partybook update 0192... --phone "+1 555 0100"
  partybook update 0192... --attr industry=Logistics --city ""`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := buildPatch(cmd)
			if err != nil {
				return err
			}
			return f.withService(func(svc *partybook.Service) error {
				v, err := svc.Update(cmd.Context(), args[0], patch)
				if err != nil {
					return err
				}
				return printView(cmd.OutOrStdout(), f.jsonMode, v)
			})
		},
	}
	addFieldFlags(cmd)
	return cmd
}

func newGetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a party",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withService(func(svc *partybook.Service) error {
				v, err := svc.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printView(cmd.OutOrStdout(), f.jsonMode, v)
			})
		},
	}
}

func newDeleteCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a party and its contact channels, address and attributes",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.withService(func(svc *partybook.Service) error {
				if err := svc.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				if f.jsonMode {
					return printJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}
