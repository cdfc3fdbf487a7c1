package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/hybridsr/internal/config"
	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/store"
)

// DiscoverOptions holds flags for the discover command.
type DiscoverOptions struct {
	*RootOptions
	Config   string
	Database string
	MaxIters int
	Seed     uint64
	RunID    string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs hybrid.RunIDGenerator
}

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand(rootOpts *RootOptions) *cobra.Command {
	return newDiscoverCommand(rootOpts, nil)
}

func newDiscoverCommand(rootOpts *RootOptions, ids hybrid.RunIDGenerator) *cobra.Command {
	opts := &DiscoverOptions{RootOptions: rootOpts, RunIDs: ids}

	cmd := &cobra.Command{
		Use:   "discover [dataset]",
		Short: "Run hybrid discovery on a dataset",
		Long: `Discover terms explaining the target field of a dataset. Each iteration
runs a genetic-programming search against the current residual, appends
the best candidate, and refits all terms by least squares.

The dataset defaults to the config's "dataset" entry, resolved relative to
the config file. With --db every iteration is recorded in a SQLite
database as it completes; interrupted runs keep their finished iterations.

Examples:
  hybridsr discover ds.json --config run.yaml
  hybridsr discover --config run.cue --db runs.db --max-iters 3 --seed 42`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := ""
			if len(args) == 1 {
				dataset = args[0]
			}
			return runDiscover(opts, dataset, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "run configuration, .yaml or .cue (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.MaxIters, "max-iters", 0, "override max_iters")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override search.seed")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: generated UUIDv7)")

	return cmd
}

func runDiscover(opts *DiscoverOptions, datasetPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}
	if cmd.Flags().Changed("max-iters") {
		cfg.MaxIters = opts.MaxIters
	}
	if cmd.Flags().Changed("seed") {
		cfg.Search.Seed = opts.Seed
	}

	if datasetPath == "" {
		if cfg.Dataset == "" {
			_ = formatter.Error(ErrCodeInvalidConfig, "no dataset: pass one or set \"dataset\" in the config", nil)
			return NewExitError(ExitCommandError, "no dataset given")
		}
		datasetPath = cfg.Dataset
		if !filepath.IsAbs(datasetPath) {
			datasetPath = filepath.Join(filepath.Dir(opts.Config), datasetPath)
		}
	}
	ds, err := readDataset(formatter, datasetPath)
	if err != nil {
		return err
	}

	hcfg := cfg.Hybrid()
	hcfg.RunID = opts.RunID
	if hcfg.RunID == "" {
		ids := opts.RunIDs
		if ids == nil {
			ids = hybrid.UUIDv7Generator{}
		}
		hcfg.RunID = ids.Generate()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current generation", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var runOpts []hybrid.Option
	var st *store.Store
	if opts.Database != "" {
		slog.Info("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeReadFailed, fmt.Sprintf("failed to open database: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		// Records are written under a context that outlives cancellation
		// so an interrupted run keeps its finished iterations.
		if err := st.CreateRun(context.WithoutCancel(ctx), hcfg.RunID, hcfg.Target, cfg); err != nil {
			return formatter.Fail("failed to record run", err)
		}
		runOpts = append(runOpts, hybrid.WithRecorder(st.Recorder(context.WithoutCancel(ctx))))
	}

	res, runErr := hybrid.Run(ctx, ds, hcfg, runOpts...)
	if res == nil {
		return formatter.Fail("discovery failed", runErr)
	}
	if st != nil && res.Stop != "" {
		if err := st.FinishRun(context.WithoutCancel(ctx), res.RunID, res.Stop); err != nil {
			slog.Error("failed to record stop reason", "run", res.RunID, "error", err)
		}
	}

	summary := res.Summary()
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			formatter.VerboseLog("Run %s cancelled after %d iteration(s)", res.RunID, len(summary.Iterations))
		}
		return formatter.Fail("discovery interrupted", runErr)
	}

	return formatter.Success(summary, func(w io.Writer) {
		writeSummaryText(w, summary)
	})
}

// writeSummaryText prints a run summary, one block per iteration.
func writeSummaryText(w io.Writer, s hybrid.Summary) {
	fmt.Fprintf(w, "Run %s (target %s): stopped on %s\n", s.RunID, s.Target, s.Stop)
	writeIterationsText(w, s.Iterations)
}

func writeIterationsText(w io.Writer, iterations []hybrid.IterationSummary) {
	if len(iterations) == 0 {
		fmt.Fprintln(w, "  no iterations completed")
		return
	}
	for _, it := range iterations {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Iteration %d: + %s (candidate corr %.4f)\n", it.Iteration, it.Candidate, it.CandidateCorrelation)
		for i, e := range it.Expressions {
			fmt.Fprintf(w, "  %+.6g  %s\n", it.Coefficients[i], e)
		}
		if it.Intercept != 0 {
			fmt.Fprintf(w, "  %+.6g  (intercept)\n", it.Intercept)
		}
		fmt.Fprintf(w, "  R² %.6f  corr %.6f  residual %.3g\n", it.R2, it.Correlation, it.ResidualNorm)
	}
}
