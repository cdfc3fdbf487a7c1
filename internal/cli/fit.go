package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/regress"
)

// FitOptions holds flags for the fit command.
type FitOptions struct {
	*RootOptions
	Target    string
	Terms     []string
	Intercept bool
	PerLevel  bool
}

// FitResult is the output of the fit command.
type FitResult struct {
	Target            string      `json:"target"`
	Expressions       []string    `json:"expressions"`
	Coefficients      []float64   `json:"coefficients"`
	Intercept         *float64    `json:"intercept,omitempty"`
	LevelCoefficients [][]float64 `json:"level_coefficients,omitempty"`
	R2                float64     `json:"r2"`
	Correlation       float64     `json:"correlation"`
	ResidualNorm      float64     `json:"residual_norm"`
	Condition         float64     `json:"condition"`
}

// NewFitCommand creates the fit command.
func NewFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit <dataset>",
		Short: "Least-squares fit of fixed terms",
		Long: `Fit the target field as a linear combination of the given terms and
report coefficients and diagnostics.

Examples:
  hybridsr fit ds.json --target target --term "mul(inputs, inputs)" --term "ddx(laplacian(inputs))"
  hybridsr fit ds.json --target target --term inputs --intercept --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "target", "target field")
	cmd.Flags().StringArrayVar(&opts.Terms, "term", nil, "term expression (repeatable, required)")
	_ = cmd.MarkFlagRequired("term")
	cmd.Flags().BoolVar(&opts.Intercept, "intercept", false, "fit an intercept")
	cmd.Flags().BoolVar(&opts.PerLevel, "per-level", false, "fit each vertical level separately")

	return cmd
}

func runFit(opts *FitOptions, datasetPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	terms := make([]expr.Expr, len(opts.Terms))
	for i, text := range opts.Terms {
		e, err := expr.Parse(text)
		if err != nil {
			return formatter.Fail(fmt.Sprintf("invalid term %d", i+1), err)
		}
		terms[i] = e
	}

	ds, err := readDataset(formatter, datasetPath)
	if err != nil {
		return err
	}
	target, err := ds.Field(opts.Target)
	if err != nil {
		return formatter.Fail("target field", err)
	}

	m, err := regress.Fit(ds, terms, target,
		regress.WithIntercept(opts.Intercept),
		regress.WithPerLevel(opts.PerLevel),
	)
	if err != nil {
		return formatter.Fail("fit failed", err)
	}

	result := newFitResult(opts.Target, m)
	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s ≈ %s\n", result.Target, m)
		fmt.Fprintf(w, "  R²:            %.6f\n", result.R2)
		fmt.Fprintf(w, "  correlation:   %.6f\n", result.Correlation)
		fmt.Fprintf(w, "  residual norm: %.6g\n", result.ResidualNorm)
		fmt.Fprintf(w, "  condition:     %.3g\n", result.Condition)
		for lev, coefs := range result.LevelCoefficients {
			fmt.Fprintf(w, "  level %d: %v\n", lev, coefs)
		}
	})
}

func newFitResult(target string, m *regress.Model) FitResult {
	r := FitResult{
		Target:            target,
		Expressions:       make([]string, len(m.Terms)),
		Coefficients:      m.Coefficients,
		LevelCoefficients: m.LevelCoefficients,
		R2:                m.R2,
		Correlation:       m.Correlation,
		ResidualNorm:      m.ResidualNorm,
		Condition:         m.Condition,
	}
	for i, t := range m.Terms {
		r.Expressions[i] = t.String()
	}
	if m.HasIntercept {
		b := m.Intercept
		r.Intercept = &b
	}
	return r
}
