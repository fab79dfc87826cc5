package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unearth-dev/unearth/internal/config"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/steps"
	"github.com/unearth-dev/unearth/internal/storage"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	Manifest string
	Out      string
	Prefixes []string
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract <version>",
		Short: "Unpack a release's decompiled sources into a directory",
		Long: `Unpack entries from a release's decompiled source archive, preferring the
merged artifact and falling back to client then server. Use --path to limit
extraction to entries under given path prefixes.

Example:
  unearth extract --manifest releases.yaml --out ./src 1.14.4
  unearth extract --manifest releases.yaml --out ./src --path com/example/ 1.14.4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return extractRelease(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to release manifest (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "destination directory (required)")
	cmd.Flags().StringArrayVar(&opts.Prefixes, "path", nil, "extract only entries under this path prefix (repeatable)")
	_ = cmd.MarkFlagRequired("manifest")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func extractRelease(cmd *cobra.Command, opts *ExtractOptions, version string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	g, err := loadGraph(opts.Manifest)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	name, err := graph.NormalizeVersionInput(version)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	release := g.ByName(name)
	if release == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown version %q", version))
	}

	store := storage.NewStore(cfg.StoreRoot, cfg.Flavors.Storage())
	if err := storage.RegisterDefaultLayout(store); err != nil {
		return WrapExitError(ExitCommandError, "failed to set up store", err)
	}

	n, err := steps.ExtractSources(store, release, opts.Prefixes, opts.Out)
	if err != nil {
		return WrapExitError(ExitFailure, "extraction failed", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	return formatter.Success(fmt.Sprintf("extracted %d file(s) from %s to %s", n, release.Name(), opts.Out))
}
