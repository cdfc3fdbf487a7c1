package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
)

// Recorder receives every completed iteration. A non-nil error aborts the run.
type Recorder func(IterationRecord) error

type searchFunc func(ctx context.Context, ds *grid.Dataset, target *grid.Field, cfg search.Config, opts ...search.Option) (search.Result, error)

type options struct {
	recorders []Recorder
	ids       RunIDGenerator
	search    searchFunc
}

// Option configures Run.
type Option func(*options)

// WithRecorder adds a Recorder. Recorders run in the order added.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorders = append(o.recorders, r) }
}

// WithRunIDGenerator sets the generator used when Config.RunID is empty.
// The default is UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// withSearch replaces the candidate search.
func withSearch(fn searchFunc) Option {
	return func(o *options) { o.search = fn }
}

// Run discovers up to cfg.MaxIters terms explaining the field cfg.Target.
//
// Search exhaustion and spent retries end the run early; the terms and
// models accumulated so far are returned with a nil error and Result.Stop
// set accordingly. Cancellation returns the partial result together with
// the context's error.
func Run(ctx context.Context, ds *grid.Dataset, cfg Config, opts ...Option) (*Result, error) {
	o := options{ids: UUIDv7Generator{}, search: search.Search}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	target, err := ds.Field(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("hybrid target: %w", err)
	}
	if cfg.RunID == "" {
		cfg.RunID = o.ids.Generate()
	}

	cache := eval.NewCache(cfg.Search.CacheSize)
	ev := eval.New(ds, eval.WithCache(cache))
	fitOpts := append(cfg.fitOptions(), regress.WithEvaluator(ev))

	res := &Result{RunID: cfg.RunID, Target: cfg.Target}
	slog.Info("discovery starting",
		"run", cfg.RunID,
		"target", cfg.Target,
		"max_iters", cfg.MaxIters,
		"tolerance", cfg.ResidualTolerance,
	)

	var terms []expr.Expr
	residual := target
	for it := 1; it <= cfg.MaxIters; it++ {
		rec, stop, err := runIteration(ctx, ds, target, residual, terms, it, cfg, o, cache, ev, fitOpts)
		if err != nil {
			if ctx.Err() != nil {
				res.Stop = StopCancelled
			}
			return res, err
		}
		if stop != "" {
			res.Stop = stop
			slog.Info("discovery stopped early", "run", cfg.RunID, "iteration", it, "reason", stop)
			return res, nil
		}

		terms = rec.Terms
		residual = rec.Residual
		res.Terms = slices.Clone(terms)
		res.Models = append(res.Models, rec.Model)
		res.Records = append(res.Records, *rec)

		slog.Info("iteration complete",
			"run", cfg.RunID,
			"iteration", it,
			"candidate", rec.Candidate.Expr.String(),
			"candidate_correlation", rec.Candidate.Correlation,
			"correlation", rec.Model.Correlation,
			"residual_norm", rec.ResidualNorm,
		)
		for _, r := range o.recorders {
			if err := r(*rec); err != nil {
				return res, fmt.Errorf("record iteration %d: %w", it, err)
			}
		}

		if rec.ResidualNorm <= cfg.ResidualTolerance {
			res.Stop = StopTolerance
			return res, nil
		}
	}
	res.Stop = StopMaxIters
	return res, nil
}

// runIteration searches, re-fits and computes the next residual, retrying
// with fresh seeds when the candidate is degenerate or the fit is singular.
// A non-empty StopReason ends the run without an error.
func runIteration(
	ctx context.Context,
	ds *grid.Dataset,
	target, residual *grid.Field,
	terms []expr.Expr,
	it int,
	cfg Config,
	o options,
	cache *eval.Cache,
	ev *eval.Evaluator,
	fitOpts []regress.Option,
) (*IterationRecord, StopReason, error) {
	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		if retry > cfg.maxRetries() {
			return nil, StopRetries, nil
		}

		scfg := cfg.Search
		scfg.Seed = cfg.seed(it, retry)
		sres, err := o.search(ctx, ds, residual, scfg, search.WithSpectralCache(cache))
		if search.IsSearchExhausted(err) {
			slog.Info("search exhausted", "iteration", it, "retry", retry, "error", err)
			return nil, StopExhausted, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("iteration %d search: %w", it, err)
		}
		if sres.Best.Expr == nil || sres.Correlation == 0 {
			slog.Warn("degenerate candidate, retrying", "iteration", it, "retry", retry)
			continue
		}

		next := append(slices.Clone(terms), sres.Best.Expr)
		model, err := regress.Fit(ds, next, target, fitOpts...)
		if regress.IsSingularDesignMatrix(err) {
			slog.Warn("singular fit, dropping candidate",
				"iteration", it,
				"retry", retry,
				"candidate", sres.Best.Expr.String(),
				"error", err,
			)
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("iteration %d fit: %w", it, err)
		}

		pred, err := model.PredictWith(ev)
		if err != nil {
			return nil, "", fmt.Errorf("iteration %d predict: %w", it, err)
		}
		r, err := regress.Residual(target, pred)
		if err != nil {
			return nil, "", err
		}
		return &IterationRecord{
			RunID:        cfg.RunID,
			Iteration:    it,
			Terms:        next,
			Candidate:    sres.Best,
			Generations:  sres.Generations,
			Model:        model,
			Residual:     r,
			ResidualNorm: regress.RelativeNorm(r, target),
			Retries:      retry,
		}, "", nil
	}
}
