package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Expr     string
}

// RunHistory is the output of history --run.
type RunHistory struct {
	Run        store.Run                 `json:"run"`
	Iterations []hybrid.IterationSummary `json:"iterations"`
}

// TermHistory is the output of history --expr.
type TermHistory struct {
	Expression  string             `json:"expression"`
	ID          string             `json:"id"`
	Occurrences []store.Occurrence `json:"occurrences"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query recorded runs",
		Long: `Query runs recorded by discover --db.

Without filters all runs are listed in creation order. With --run the
run's iterations are shown with their terms and coefficients. With --expr
every stored model containing the term is listed, matched by the term's
canonical form.

Examples:
  hybridsr history --db runs.db
  hybridsr history --db runs.db --run 01890a5d-ac96-774b-bcce-b302099a8057
  hybridsr history --db runs.db --expr "ddx(laplacian(inputs))" --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run's iterations")
	cmd.Flags().StringVar(&opts.Expr, "expr", "", "find stored models containing this term")
	cmd.MarkFlagsMutuallyExclusive("run", "expr")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	st, err := openExistingStore(formatter, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	switch {
	case opts.RunID != "":
		run, err := readRun(formatter, st, cmd, opts.RunID)
		if err != nil {
			return err
		}
		iterations, err := st.ReadIterations(ctx, opts.RunID)
		if err != nil {
			return formatter.Fail("failed to read iterations", err)
		}
		h := RunHistory{Run: run, Iterations: iterations}
		return formatter.Success(h, func(w io.Writer) {
			fmt.Fprintf(w, "Run %s (target %s): %s\n", run.ID, run.Target, stopText(run.Stop))
			writeIterationsText(w, iterations)
		})

	case opts.Expr != "":
		e, err := expr.Parse(opts.Expr)
		if err != nil {
			return formatter.Fail("invalid expression", err)
		}
		id := expr.ID(e)
		occ, err := st.FindTerm(ctx, id)
		if err != nil {
			return formatter.Fail("failed to search terms", err)
		}
		h := TermHistory{Expression: e.String(), ID: id, Occurrences: occ}
		return formatter.Success(h, func(w io.Writer) {
			if len(occ) == 0 {
				fmt.Fprintf(w, "No stored models contain %s\n", h.Expression)
				return
			}
			fmt.Fprintf(w, "%s appears in %d model(s):\n", h.Expression, len(occ))
			for _, o := range occ {
				fmt.Fprintf(w, "  run %s iteration %d term %d: %+.6g\n", o.RunID, o.Iteration, o.Position+1, o.Coefficient)
			}
		})
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return formatter.Fail("failed to list runs", err)
	}
	return formatter.Success(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%3d  %s  target=%s  iterations=%d  %s\n", r.Seq, r.ID, r.Target, r.Iterations, stopText(r.Stop))
		}
	})
}

func stopText(stop hybrid.StopReason) string {
	if stop == "" {
		return "unfinished"
	}
	return "stopped on " + string(stop)
}

// openExistingStore opens a database that must already exist; store.Open
// would otherwise create an empty one.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFailed, fmt.Sprintf("failed to open database: %v", err), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func readRun(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command, id string) (store.Run, error) {
	run, err := st.ReadRun(cmd.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
		return store.Run{}, WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", id), err)
	}
	if err != nil {
		return store.Run{}, formatter.Fail("failed to read run", err)
	}
	return run, nil
}
