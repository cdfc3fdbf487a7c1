package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/hybridsr/internal/report"
)

// PlotOptions holds flags for the plot command.
type PlotOptions struct {
	*RootOptions
	Database string
	RunID    string
	Out      string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Chart a recorded run's convergence",
		Long: `Draw the fit correlation and relative residual norm of each iteration
of a recorded run. The image format follows the output extension
(.png or .svg).

Example:
  hybridsr plot --db runs.db --run <run-id> --out convergence.png`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to chart (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output image, .png or .svg (required)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runPlot(opts *PlotOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if _, err := report.Format(opts.Out); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "unsupported output", err)
	}

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := readRun(formatter, st, cmd, opts.RunID); err != nil {
		return err
	}
	iterations, err := st.ReadIterations(cmd.Context(), opts.RunID)
	if err != nil {
		return formatter.Fail("failed to read iterations", err)
	}

	if err := report.ConvergenceChart(iterations, opts.Out); err != nil {
		if errors.Is(err, report.ErrNoData) {
			return formatter.Fail(fmt.Sprintf("run %s has no iterations to plot", opts.RunID), err)
		}
		_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("failed to write chart: %v", err), nil)
		return WrapExitError(ExitCommandError, "failed to write chart", err)
	}
	slog.Info("chart written", "path", opts.Out, "run", opts.RunID, "iterations", len(iterations))

	data := map[string]any{"path": opts.Out, "run_id": opts.RunID, "iterations": len(iterations)}
	return formatter.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Wrote %s (%d iteration(s))\n", opts.Out, len(iterations))
	})
}
