package cli

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/search"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	CorrWith string
}

// FieldStats summarizes an evaluated field. Statistics cover the finite
// values only; NonFinite counts the rest.
type FieldStats struct {
	Expression  string   `json:"expression"`
	Shape       []int    `json:"shape"`
	Mean        float64  `json:"mean"`
	Std         float64  `json:"std"`
	Min         float64  `json:"min"`
	Max         float64  `json:"max"`
	NonFinite   int      `json:"non_finite,omitempty"`
	CorrWith    string   `json:"corr_with,omitempty"`
	Correlation *float64 `json:"correlation,omitempty"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <dataset> <expression>",
		Short: "Evaluate an expression over a dataset",
		Long: `Evaluate an expression over every field of a dataset and print summary
statistics of the result. With --corr-with the Pearson correlation against
a dataset field is reported as well.

Examples:
  hybridsr eval ds.json "ddx(laplacian(inputs))"
  hybridsr eval ds.json "mul(inputs, inputs)" --corr-with target --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CorrWith, "corr-with", "", "field to correlate the result with")

	return cmd
}

func runEval(opts *EvalOptions, datasetPath, text string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	e, err := expr.Parse(text)
	if err != nil {
		return formatter.Fail("invalid expression", err)
	}
	ds, err := readDataset(formatter, datasetPath)
	if err != nil {
		return err
	}

	f, err := eval.Evaluate(e, ds)
	if err != nil {
		return formatter.Fail("evaluation failed", err)
	}
	stats := summarize(f)
	stats.Expression = e.String()

	if opts.CorrWith != "" {
		other, err := ds.Field(opts.CorrWith)
		if err != nil {
			return formatter.Fail("correlation field", err)
		}
		c := search.Correlation(f.Values(), other.Values())
		stats.CorrWith = opts.CorrWith
		stats.Correlation = &c
	}

	return formatter.Success(stats, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", stats.Expression)
		fmt.Fprintf(w, "  shape: %v\n", stats.Shape)
		fmt.Fprintf(w, "  mean:  %.6g\n", stats.Mean)
		fmt.Fprintf(w, "  std:   %.6g\n", stats.Std)
		fmt.Fprintf(w, "  min:   %.6g\n", stats.Min)
		fmt.Fprintf(w, "  max:   %.6g\n", stats.Max)
		if stats.NonFinite > 0 {
			fmt.Fprintf(w, "  non-finite values: %d\n", stats.NonFinite)
		}
		if stats.Correlation != nil {
			fmt.Fprintf(w, "  correlation with %s: %.6f\n", stats.CorrWith, *stats.Correlation)
		}
	})
}

// readDataset loads a dataset file, reporting failures through formatter.
func readDataset(formatter *OutputFormatter, path string) (*grid.Dataset, error) {
	ds, err := grid.ReadFile(path)
	if err != nil {
		code := ErrorCode(err)
		if code == ErrCodeGeneric {
			code = ErrCodeReadFailed
		}
		_ = formatter.Error(code, fmt.Sprintf("failed to read dataset %s: %v", path, err), nil)
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to read dataset", code), err)
	}
	formatter.VerboseLog("Loaded %s: shape %v, fields %v", path, ds.Shape(), ds.Names())
	return ds, nil
}

func summarize(f *grid.Field) FieldStats {
	values := f.Values()
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	s := FieldStats{Shape: f.Shape(), NonFinite: len(values) - len(finite)}
	if len(finite) == 0 {
		return s
	}
	s.Mean, s.Std = stat.PopMeanStdDev(finite, nil)
	s.Min = floats.Min(finite)
	s.Max = floats.Max(finite)
	return s
}
