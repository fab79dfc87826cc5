package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unearth-dev/unearth/internal/config"
	"github.com/unearth-dev/unearth/internal/fetch"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/ledger"
	"github.com/unearth-dev/unearth/internal/meta"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/provider"
	"github.com/unearth-dev/unearth/internal/steps"
	"github.com/unearth-dev/unearth/internal/storage"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Manifest   string
	StableOnly bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [versions...]",
		Short: "Run the pipeline over the manifest's releases",
		Long: `Run the full pipeline: fetch distributions, merge, materialize provider
data, remap, and decompile. With version arguments only the named releases
are processed; without, every release in the manifest.

Runs are incremental: artifacts already valid in the store are reused, so a
steady-state re-run does no work. One release failing never blocks the rest.

Example:
  unearth run --manifest releases.yaml
  unearth run --manifest releases.yaml 1.14.4 1.15`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "path to release manifest (required)")
	cmd.Flags().BoolVar(&opts.StableOnly, "stable-only", false, "process only stable releases")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}

func runPipeline(cmd *cobra.Command, opts *RunOptions, args []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	g, err := loadGraph(opts.Manifest)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	slog.Info("manifest loaded", "releases", g.Len())

	filter, err := releaseFilter(g, args, opts.StableOnly)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid version selection", err)
	}

	engine, err := assemble(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to assemble pipeline", err)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	slog.Info("pipeline starting", "store", cfg.StoreRoot, "threads", cfg.Threads)
	result, err := engine.Run(ctx, g, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "pipeline interrupted", err)
	}

	if path := ledgerPath(cfg); path != "" {
		if err := recordRun(ctx, path, cfg.Flavors.Storage(), result); err != nil {
			slog.Error("failed to record run", "error", err)
		}
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		if err := formatter.Success(reportData(result)); err != nil {
			return err
		}
	} else {
		fmt.Fprint(cmd.OutOrStdout(), renderReport(result))
	}

	if failed := result.Failed(); len(failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d release(s) failed", len(failed)))
	}
	return nil
}

func loadGraph(manifestPath string) (*graph.Graph, error) {
	entries, err := graph.LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return graph.Build(entries)
}

// releaseFilter resolves version arguments against the graph up front, so a
// typo fails the command instead of silently selecting nothing.
func releaseFilter(g *graph.Graph, args []string, stableOnly bool) (func(*graph.Release) bool, error) {
	if len(args) == 0 && !stableOnly {
		return nil, nil
	}

	selected := make(map[string]bool, len(args))
	for _, arg := range args {
		name, err := graph.NormalizeVersionInput(arg)
		if err != nil {
			return nil, err
		}
		if g.ByName(name) == nil {
			return nil, fmt.Errorf("unknown version %q", arg)
		}
		selected[name] = true
	}

	return func(r *graph.Release) bool {
		if stableOnly && !r.Stable() {
			return false
		}
		if len(selected) == 0 {
			return true
		}
		return selected[r.Name()]
	}, nil
}

// assemble wires the store, fetcher, providers, and step workers from the
// configuration into a ready engine.
func assemble(cfg config.Config) (*pipeline.Engine, error) {
	store := storage.NewStore(cfg.StoreRoot, cfg.Flavors.Storage())
	if err := storage.RegisterDefaultLayout(store); err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(cfg.Network.MaxConcurrent, cfg.Network.MaxPerOrigin)
	if err != nil {
		return nil, err
	}
	retry := fetch.RetryPolicy{
		Attempts: cfg.Network.RetryAttempts,
		Interval: cfg.Network.RetryInterval(),
	}

	registry, err := buildRegistry(cfg, store, fetcher, retry)
	if err != nil {
		return nil, err
	}

	var remapper steps.Remapper
	if cfg.Tools.Remapper.Configured() {
		remapper = &steps.ExecRemapper{Command: cfg.Tools.Remapper.Command, Args: cfg.Tools.Remapper.Args}
	}
	var decompiler steps.Decompiler
	if cfg.Tools.Decompiler.Configured() {
		decompiler = &steps.ExecDecompiler{Command: cfg.Tools.Decompiler.Command, Args: cfg.Tools.Decompiler.Args}
	}

	workers := []pipeline.Worker{
		&steps.FetchDistributions{Fetcher: fetcher, Retry: retry},
		&steps.MergeDistributions{},
	}
	for _, kind := range provider.Kinds {
		workers = append(workers, &steps.MaterializeData{DataKind: kind, Registry: registry})
	}
	workers = append(workers,
		&steps.RemapArtifact{Registry: registry, Remapper: remapper},
		&steps.DecompileArtifact{Engine: decompiler},
	)

	return pipeline.New(store, workers, pipeline.WithParallelism(cfg.Threads))
}

func buildRegistry(cfg config.Config, store *storage.Store, fetcher *fetch.Fetcher, retry fetch.RetryPolicy) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, spec := range cfg.Providers {
		kind := provider.Kind(spec.Kind)
		cachePath := filepath.Join(cfg.StoreRoot, "meta", spec.Name+".json")
		registry.Add(&provider.Remote{
			StrategyName: spec.Name,
			DataKind:     kind,
			Source:       meta.NewRemoteSource(spec.MetaURL, cachePath, fetcher),
			MavenBase:    spec.MavenBase,
			InnerPath:    spec.InnerPath,
			Ext:          spec.Ext,
			Store:        store,
			Fetcher:      fetcher,
			Retry:        retry,
		})
	}
	return registry, nil
}

func ledgerPath(cfg config.Config) string {
	if cfg.Ledger != "" {
		return cfg.Ledger
	}
	if cfg.StoreRoot != "" {
		return filepath.Join(cfg.StoreRoot, "runs.db")
	}
	return ""
}

func recordRun(ctx context.Context, path string, flavors storage.Flavors, result *pipeline.RunResult) error {
	l, err := ledger.Open(path)
	if err != nil {
		return err
	}
	defer l.Close()

	runID, err := l.RecordRun(ctx, flavors, result)
	if err != nil {
		return err
	}
	slog.Info("run recorded", "run_id", runID)
	return nil
}

// signalContext derives a context cancelled by SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
