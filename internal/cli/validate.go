package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unearth-dev/unearth/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Manifest string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and manifest without running",
		Long: `Check the configuration file against its schema and, when --manifest is
given, build the release graph to surface manifest problems. Nothing is
fetched and nothing is written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateInputs(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to release manifest")

	return cmd
}

func validateInputs(cmd *cobra.Command, opts *ValidateOptions) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return NewExitError(ExitFailure, "configuration invalid")
	}

	summary := fmt.Sprintf("configuration OK (store %s, %d provider(s))", cfg.StoreRoot, len(cfg.Providers))

	if opts.Manifest != "" {
		g, err := loadGraph(opts.Manifest)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return NewExitError(ExitFailure, "manifest invalid")
		}
		summary += fmt.Sprintf("; manifest OK (%d release(s))", g.Len())
	}

	return formatter.Success(summary)
}
