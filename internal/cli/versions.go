package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unearth-dev/unearth/internal/graph"
)

// VersionsOptions holds flags for the versions command.
type VersionsOptions struct {
	*RootOptions
	Manifest   string
	StableOnly bool
}

// versionInfo is the JSON shape of one listed release.
type versionInfo struct {
	Name      string `json:"name"`
	Build     int    `json:"build"`
	Stable    bool   `json:"stable"`
	HasClient bool   `json:"has_client"`
	HasServer bool   `json:"has_server"`
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "versions",
		Short:         "List the manifest's releases in pipeline order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listVersions(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to release manifest (required)")
	cmd.Flags().BoolVar(&opts.StableOnly, "stable-only", false, "list only stable releases")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func listVersions(cmd *cobra.Command, opts *VersionsOptions) error {
	g, err := loadGraph(opts.Manifest)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	var infos []versionInfo
	for _, r := range g.Releases() {
		if opts.StableOnly && !r.Stable() {
			continue
		}
		infos = append(infos, versionInfo{
			Name:      r.Name(),
			Build:     r.Build(),
			Stable:    r.Stable(),
			HasClient: r.HasVariant(graph.VariantClient),
			HasServer: r.HasVariant(graph.VariantServer),
		})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	var b strings.Builder
	for _, info := range infos {
		var sides []string
		if info.HasClient {
			sides = append(sides, "client")
		}
		if info.HasServer {
			sides = append(sides, "server")
		}
		marker := " "
		if info.Stable {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-16s build %-6d %s\n", marker, info.Name, info.Build, strings.Join(sides, "+"))
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
