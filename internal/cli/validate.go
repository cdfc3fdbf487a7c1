package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hybridsr/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a run configuration",
		Long: `Validate a run configuration (.yaml, .yml or .cue) against the
configuration schema and print it with defaults filled in.

Exit codes:
  0 - Configuration valid
  1 - Configuration invalid
  2 - File not found or unreadable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if err != nil {
		code := ErrorCode(err)
		if code == ErrCodeGeneric {
			code = ErrCodeReadFailed
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(exitCodeFor(code), fmt.Sprintf("%s: invalid configuration", code), err)
	}
	formatter.VerboseLog("Validated %s against the embedded schema", path)

	result := ValidationResult{Valid: true, Path: path, Config: cfg}
	return formatter.Success(result, func(w io.Writer) {
		s := cfg.Search
		fmt.Fprintf(w, "✓ %s is valid\n", path)
		fmt.Fprintf(w, "  target:     %s\n", cfg.Target)
		fmt.Fprintf(w, "  iterations: %d (tolerance %g, retries %d)\n", cfg.MaxIters, cfg.ResidualTolerance, cfg.MaxRetries)
		fmt.Fprintf(w, "  features:   %s\n", strings.Join(s.BaseFeatures, ", "))
		fmt.Fprintf(w, "  functions:  %s\n", strings.Join(append(append([]string{}, s.BaseFunctions...), s.SpatialFunctions...), ", "))
		fmt.Fprintf(w, "  population: %d × %d generations, seed %d\n", s.PopulationSize, s.Generations, s.Seed)
	})
}
