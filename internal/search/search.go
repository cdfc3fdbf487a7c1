package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// Candidate is an expression together with the training statistics that
// selected it.
type Candidate struct {
	Expr expr.Expr
	// Correlation is the signed Pearson correlation with the target.
	Correlation float64
	Fitness     float64
	// Generation is the generation in which the candidate was first best.
	Generation int
}

// Result is the outcome of a search.
type Result struct {
	Best        Candidate
	Correlation float64
	// Generations is the number of generations scored.
	Generations int
	// History holds the best |correlation| after each generation.
	History []float64
	// Evaluated counts distinct candidates scored.
	Evaluated int
	// Stop explains why the search ended.
	Stop StopReason
}

// StopReason explains why a search ended.
type StopReason string

const (
	StopGenerations StopReason = "generations"
	StopCorrelation StopReason = "stopping_correlation"
	StopStagnation  StopReason = "stagnation"
)

// Option configures Search.
type Option func(*options)

type options struct {
	cache *eval.Cache
}

// WithSpectralCache shares c across searches over the same dataset.
func WithSpectralCache(c *eval.Cache) Option {
	return func(o *options) { o.cache = c }
}

// seedMix decorrelates the two PCG state words derived from one seed.
const seedMix = 0x9e3779b97f4a7c15

// NewRand returns the generator Search uses for a seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^seedMix))
}

// Search evolves expressions over ds and returns the one whose values best
// correlate with target, which must conform to ds.
//
// Returns *SearchExhaustedError when no candidate had nonzero correlation.
// Configuration naming unknown fields or operators fails before any
// evaluation with *grid.UnknownFieldError or *expr.UnsupportedOperatorError.
func Search(ctx context.Context, ds *grid.Dataset, target *grid.Field, cfg Config, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.withDefaults()
	voc, err := cfg.resolve(ds)
	if err != nil {
		return Result{}, err
	}
	if err := ds.Conforms(target); err != nil {
		return Result{}, fmt.Errorf("search target: %w", err)
	}
	if o.cache == nil {
		o.cache = eval.NewCache(cfg.CacheSize)
	}

	rng := NewRand(cfg.Seed)
	sc := newScorer(eval.New(ds, eval.WithCache(o.cache)), target, cfg)
	pop := voc.initial(rng, cfg)

	res := Result{Stop: StopGenerations}
	bestFitness := math.Inf(-1)
	stagnant := 0
	for gen := 0; gen < cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		scores, err := sc.score(ctx, pop)
		if err != nil {
			return Result{}, err
		}
		res.Generations = gen + 1

		i := best(scores)
		if scores[i].fitness > bestFitness {
			bestFitness = scores[i].fitness
			res.Best = Candidate{
				Expr:        pop[i],
				Correlation: scores[i].correlation,
				Fitness:     scores[i].fitness,
				Generation:  gen,
			}
			stagnant = 0
		} else {
			stagnant++
		}
		res.History = append(res.History, math.Abs(res.Best.Correlation))
		if res.Best.Expr != nil {
			slog.Debug("generation scored",
				"generation", gen,
				"best", res.Best.Expr.String(),
				"correlation", res.Best.Correlation,
				"fitness", res.Best.Fitness,
				"evaluated", sc.evaluated(),
			)
		}

		if cfg.StoppingCorrelation > 0 && math.Abs(res.Best.Correlation) >= cfg.StoppingCorrelation {
			res.Stop = StopCorrelation
			break
		}
		if cfg.Patience > 0 && stagnant >= cfg.Patience {
			res.Stop = StopStagnation
			break
		}
		if gen+1 < cfg.Generations {
			pop = voc.evolve(rng, pop, scores, cfg)
		}
	}

	res.Evaluated = sc.evaluated()
	if res.Best.Expr == nil || res.Best.Correlation == 0 {
		return Result{}, &SearchExhaustedError{Generations: res.Generations, Evaluated: res.Evaluated}
	}
	res.Correlation = res.Best.Correlation
	return res, nil
}
