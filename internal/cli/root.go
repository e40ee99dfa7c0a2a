// Package cli implements the partybook command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/partybook/internal/config"
	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/paths"
	"github.com/mesh-intelligence/partybook/pkg/partybook"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks bad command-line usage.
var errUsage = errors.New("usage")

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	verbose   bool
}

// NewRootCmd creates the top-level "partybook" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "partybook",
		Short: "Manage prospects and customers",
		Long: "Partybook stores people and organizations as prospects or customers,\n" +
			"with contact channels, an address and categorized attributes, and\n" +
			"converts prospects into customers in a secondary record system.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "configuration directory (default: $(CWD)/.partybook)")
	root.PersistentFlags().StringVar(&f.dataDir, "data-dir", "", "data directory (default: $(CWD)/.partybook-db)")
	root.PersistentFlags().BoolVar(&f.jsonMode, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log to stderr using the configured log mode")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(f),
		newCreateCmd(f),
		newUpdateCmd(f),
		newGetCmd(f),
		newDeleteCmd(f),
		newConvertCmd(f),
		newExportCmd(f),
		newImportCmd(f),
		newBridgeConfigCmd(f),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, "partybook:", err)
	}
	return exitCode(err)
}

// exitCode maps an error to 1 when the caller can fix it and 2 otherwise.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		return exitUserError
	}
	var cerr *types.ConversionError
	if errors.As(err, &cerr) {
		switch cerr.Stage {
		case types.StageNotAProspect, types.StageBlockingValidation, types.StageNeedsConfirmation:
			return exitUserError
		}
	}
	for _, target := range []error{errUsage, types.ErrNotFound, types.ErrInvalidID, types.ErrInvalidTransition} {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// usageArgs wraps a cobra positional-args check so its failure counts as
// bad usage.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

// settings resolves the config and data directories and loads config.yaml.
func (f *rootFlags) settings() (*config.Config, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	cfg.Store.DataDir, err = paths.ResolveDataDir(f.dataDir, cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	return cfg, nil
}

// open loads configuration and opens the service. The caller closes it.
func (f *rootFlags) open() (*partybook.Service, error) {
	cfg, err := f.settings()
	if err != nil {
		return nil, err
	}
	log := logger.Nop()
	if f.verbose {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, err
		}
	}
	return partybook.Open(cfg.Store, cfg.Bridge, partybook.WithLogger(log))
}

// withService opens the service, runs fn and closes the service.
func (f *rootFlags) withService(fn func(*partybook.Service) error) error {
	svc, err := f.open()
	if err != nil {
		return err
	}
	return errors.Join(fn(svc), svc.Close())
}
