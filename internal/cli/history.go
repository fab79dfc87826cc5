package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unearth-dev/unearth/internal/config"
	"github.com/unearth-dev/unearth/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Release string
	Run     string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pipeline runs",
		Long: `Query the run ledger. Without flags the most recent runs are listed; with
--run the run's per-step outcomes are shown; with --release every recorded
outcome for that release across runs.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Release, "release", "", "show history for one release")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show one run's step outcomes")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	path := ledgerPath(cfg)
	if path == "" {
		return NewExitError(ExitCommandError, "no ledger path configured")
	}
	l, err := ledger.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer l.Close()

	ctx := cmd.Context()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	switch {
	case opts.Run != "":
		records, err := l.Steps(ctx, opts.Run)
		if err != nil {
			return WrapExitError(ExitFailure, "history query failed", err)
		}
		return writeStepHistory(cmd, formatter, opts.Format, records)

	case opts.Release != "":
		records, err := l.ReleaseHistory(ctx, opts.Release)
		if err != nil {
			return WrapExitError(ExitFailure, "history query failed", err)
		}
		return writeStepHistory(cmd, formatter, opts.Format, records)

	default:
		runs, err := l.Runs(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitFailure, "history query failed", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		var b strings.Builder
		for _, run := range runs {
			finished := "running"
			if run.FinishedAt != nil {
				finished = run.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(&b, "%s  started %s  finished %s  %s\n",
				run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), finished, run.Outcome)
		}
		fmt.Fprint(cmd.OutOrStdout(), b.String())
		return nil
	}
}

func writeStepHistory(cmd *cobra.Command, formatter *OutputFormatter, format string, records []ledger.StepHistory) error {
	if format == "json" {
		return formatter.Success(records)
	}
	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "%-16s %-20s %s\n", rec.Release, rec.Step, rec.Outcome)
	}
	fmt.Fprint(cmd.OutOrStdout(), b.String())
	return nil
}
