package search

import (
	"context"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// score of a candidate. Zero-correlation candidates have fitness -Inf so
// they are never preferred over a candidate carrying any signal.
type score struct {
	correlation float64
	fitness     float64
}

// Correlation returns the Pearson correlation of x and y, or 0 when either
// is constant or contains a non-finite value.
func Correlation(x, y []float64) float64 {
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0
		}
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// scorer evaluates candidates against one target. Scores are memoized by
// canonical text for the lifetime of a search.
type scorer struct {
	ev        *eval.Evaluator
	target    []float64
	parsimony float64
	workers   int

	mu   sync.Mutex
	memo map[string]float64
}

func newScorer(ev *eval.Evaluator, target *grid.Field, cfg Config) *scorer {
	return &scorer{
		ev:        ev,
		target:    target.Values(),
		parsimony: cfg.ParsimonyCoefficient,
		workers:   cfg.Workers,
		memo:      make(map[string]float64),
	}
}

func (s *scorer) correlation(e expr.Expr) (float64, error) {
	f, err := s.ev.Evaluate(e)
	if err != nil {
		return 0, err
	}
	return Correlation(f.Values(), s.target), nil
}

// score returns one score per member of pop. Distinct candidates that were
// not seen before are evaluated concurrently.
func (s *scorer) score(ctx context.Context, pop Population) ([]score, error) {
	keys := pop.Strings()

	var todo []int
	queued := make(map[string]bool)
	s.mu.Lock()
	for i, k := range keys {
		if _, ok := s.memo[k]; !ok && !queued[k] {
			queued[k] = true
			todo = append(todo, i)
		}
	}
	s.mu.Unlock()

	results := make([]float64, len(todo))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for slot, i := range todo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := s.correlation(pop[i])
			if err != nil {
				return err
			}
			results[slot] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]score, len(pop))
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot, i := range todo {
		s.memo[keys[i]] = results[slot]
	}
	for i, e := range pop {
		c := s.memo[keys[i]]
		out[i] = score{correlation: c, fitness: math.Inf(-1)}
		if c != 0 {
			out[i].fitness = math.Abs(c) - s.parsimony*float64(expr.Size(e))
		}
	}
	return out, nil
}

// evaluated returns the number of distinct candidates scored so far.
func (s *scorer) evaluated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memo)
}

// best returns the index of the highest fitness, preferring the lower index.
func best(scores []score) int {
	b := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].fitness > scores[b].fitness {
			b = i
		}
	}
	return b
}
