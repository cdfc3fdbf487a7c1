package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
	"github.com/roach88/hybridsr/internal/store"
)

// StopFit is the stop reason recorded for fit scenarios.
const StopFit hybrid.StopReason = "fit"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	RunID string            `json:"run_id"`
	Stop  hybrid.StopReason `json:"stop"`

	// Iterations are read back from the store, in order.
	Iterations []hybrid.IterationSummary `json:"iterations"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:       true,
		RunID:      runID,
		Iterations: []hybrid.IterationSummary{},
		Errors:     []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Last returns the final iteration, or false if there is none.
func (r *Result) Last() (hybrid.IterationSummary, bool) {
	if len(r.Iterations) == 0 {
		return hybrid.IterationSummary{}, false
	}
	return r.Iterations[len(r.Iterations)-1], true
}

// Run executes a scenario against a fresh in-memory store and evaluates its
// assertions. Errors are returned for scenarios that cannot run; failed
// assertions are reported in the result.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ds, err := buildDataset(s)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}

	result := NewResult(s.runID())
	if s.IsDiscovery() {
		err = runDiscovery(ctx, st, ds, s, result)
	} else {
		err = runFit(ctx, st, ds, s, result)
	}
	if err != nil {
		return nil, err
	}

	iterations, err := st.ReadIterations(ctx, result.RunID)
	if err != nil {
		return nil, err
	}
	result.Iterations = iterations

	slog.Debug("scenario executed",
		"scenario", s.Name,
		"run", result.RunID,
		"stop", result.Stop,
		"iterations", len(iterations),
	)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, s.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func buildDataset(s *Scenario) (*grid.Dataset, error) {
	var ds *grid.Dataset
	var err error
	if s.Dataset.File != "" {
		ds, err = grid.ReadFile(s.datasetPath())
	} else {
		sp := s.Dataset.Synthetic
		ds, err = grid.Synthetic(grid.SyntheticOptions{
			NX: sp.NX, NY: sp.NY, LX: sp.LX, LY: sp.LY,
			Batch: sp.Batch, Levels: sp.Levels, MaxMode: sp.MaxMode, Seed: sp.Seed,
		})
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.Dataset.Derived))
	for name := range s.Dataset.Derived {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		f, err := eval.EvaluateString(s.Dataset.Derived[name], ds)
		if err != nil {
			return nil, fmt.Errorf("derived field %s: %w", name, err)
		}
		if ds, err = ds.With(name, f); err != nil {
			return nil, fmt.Errorf("derived field %s: %w", name, err)
		}
	}
	return ds, nil
}

func runDiscovery(ctx context.Context, st *store.Store, ds *grid.Dataset, s *Scenario, result *Result) error {
	cfg, err := s.RunConfig()
	if err != nil {
		return fmt.Errorf("scenario config: %w", err)
	}
	hcfg := cfg.Hybrid()
	hcfg.RunID = result.RunID

	if err := st.CreateRun(ctx, result.RunID, hcfg.Target, cfg); err != nil {
		return err
	}
	res, err := hybrid.Run(ctx, ds, hcfg, hybrid.WithRecorder(st.Recorder(ctx)))
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	result.Stop = res.Stop
	return st.FinishRun(ctx, result.RunID, res.Stop)
}

// runFit fits the scenario's terms and stores the model as iteration 1,
// with the last term as its candidate.
func runFit(ctx context.Context, st *store.Store, ds *grid.Dataset, s *Scenario, result *Result) error {
	target, err := ds.Field(s.Target)
	if err != nil {
		return fmt.Errorf("fit target: %w", err)
	}
	terms := make([]expr.Expr, len(s.Terms))
	for i, text := range s.Terms {
		terms[i] = expr.MustParse(text)
	}

	ev := eval.New(ds)
	model, err := regress.Fit(ds, terms, target, regress.WithIntercept(s.Intercept), regress.WithEvaluator(ev))
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	pred, err := model.PredictWith(ev)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	residual, err := regress.Residual(target, pred)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	last := terms[len(terms)-1]
	lastValues, err := ev.Evaluate(last)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	rec := hybrid.IterationRecord{
		RunID:     result.RunID,
		Iteration: 1,
		Terms:     terms,
		Candidate: search.Candidate{
			Expr:        last,
			Correlation: search.Correlation(lastValues.Values(), target.Values()),
		},
		Model:        model,
		Residual:     residual,
		ResidualNorm: model.ResidualNorm,
	}

	if err := st.CreateRun(ctx, result.RunID, s.Target, map[string]any{
		"target":    s.Target,
		"terms":     s.Terms,
		"intercept": s.Intercept,
	}); err != nil {
		return err
	}
	if err := st.WriteIteration(ctx, rec); err != nil {
		return err
	}
	result.Stop = StopFit
	return st.FinishRun(ctx, result.RunID, StopFit)
}
