package search

import (
	"fmt"
	"math"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// Config controls one candidate search. The zero value of every optional
// field selects the matching DefaultConfig value.
type Config struct {
	// BaseFeatures are the dataset fields usable as terminals.
	BaseFeatures []string
	// BaseFunctions are arithmetic operator names (add, sub, mul, div, neg).
	BaseFunctions []string
	// SpatialFunctions are differential operator names (ddx, ddy, laplacian, advected).
	SpatialFunctions []string

	ParsimonyCoefficient float64
	PopulationSize       int
	Generations          int
	Seed                 uint64

	TournamentSize int
	// InitDepth is the inclusive depth range for the initial population.
	InitDepth [2]int
	// MaxDepth rejects offspring deeper than this; the parent is kept instead.
	MaxDepth int

	PCrossover       float64
	PSubtreeMutation float64
	PHoistMutation   float64
	PPointMutation   float64
	// PPointReplace is the per-node replacement probability of point mutation.
	PPointReplace float64

	// ConstRange enables random constant terminals drawn uniformly from
	// [lo, hi]. Nil means no constants.
	ConstRange *[2]float64

	// StoppingCorrelation ends the search once the best |correlation|
	// reaches it. Zero disables early stopping.
	StoppingCorrelation float64
	// Patience ends the search after this many generations without a
	// fitness improvement. Zero disables it.
	Patience int

	// Workers bounds parallel fitness evaluation. Zero means DefaultWorkers.
	Workers int
	// CacheSize bounds the spectral sub-result cache.
	CacheSize int
}

// Defaults.
const (
	DefaultPopulationSize = 1000
	DefaultGenerations    = 20
	DefaultTournamentSize = 20
	DefaultMaxDepth       = 8
	DefaultParsimony      = 0.001
	DefaultPCrossover     = 0.9
	DefaultPMutation      = 0.01
	DefaultPPointReplace  = 0.05
	DefaultWorkers        = 4
)

// DefaultConfig returns a configuration with every tuning field set.
// Vocabulary fields are left empty.
func DefaultConfig() Config {
	return Config{
		ParsimonyCoefficient: DefaultParsimony,
		PopulationSize:       DefaultPopulationSize,
		Generations:          DefaultGenerations,
		TournamentSize:       DefaultTournamentSize,
		InitDepth:            [2]int{2, 6},
		MaxDepth:             DefaultMaxDepth,
		PCrossover:           DefaultPCrossover,
		PSubtreeMutation:     DefaultPMutation,
		PHoistMutation:       DefaultPMutation,
		PPointMutation:       DefaultPMutation,
		PPointReplace:        DefaultPPointReplace,
		Workers:              DefaultWorkers,
		CacheSize:            eval.DefaultCacheSize,
	}
}

// withDefaults fills zero-valued tuning fields. Probabilities are only
// defaulted as a group so that an explicit all-zero mutation mix is kept.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PopulationSize == 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Generations == 0 {
		c.Generations = d.Generations
	}
	if c.TournamentSize == 0 {
		c.TournamentSize = d.TournamentSize
	}
	if c.InitDepth == [2]int{} {
		c.InitDepth = d.InitDepth
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = max(d.MaxDepth, c.InitDepth[1])
	}
	if c.PCrossover == 0 && c.PSubtreeMutation == 0 && c.PHoistMutation == 0 && c.PPointMutation == 0 {
		c.PCrossover = d.PCrossover
		c.PSubtreeMutation = d.PSubtreeMutation
		c.PHoistMutation = d.PHoistMutation
		c.PPointMutation = d.PPointMutation
	}
	if c.PPointReplace == 0 {
		c.PPointReplace = d.PPointReplace
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.CacheSize == 0 {
		c.CacheSize = d.CacheSize
	}
	c.TournamentSize = min(c.TournamentSize, c.PopulationSize)
	return c
}

// Validate checks tuning parameters that do not depend on a dataset.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case len(c.BaseFeatures) == 0:
		return fmt.Errorf("search config: at least one base feature is required")
	case c.PopulationSize < 2:
		return fmt.Errorf("search config: population size must be at least 2, got %d", c.PopulationSize)
	case c.Generations < 1:
		return fmt.Errorf("search config: generations must be positive, got %d", c.Generations)
	case c.TournamentSize < 1:
		return fmt.Errorf("search config: tournament size must be positive, got %d", c.TournamentSize)
	case c.InitDepth[0] < 0 || c.InitDepth[0] > c.InitDepth[1]:
		return fmt.Errorf("search config: invalid init depth range %v", c.InitDepth)
	case c.MaxDepth < c.InitDepth[1]:
		return fmt.Errorf("search config: max depth %d is below init depth %d", c.MaxDepth, c.InitDepth[1])
	case c.ParsimonyCoefficient < 0 || math.IsNaN(c.ParsimonyCoefficient):
		return fmt.Errorf("search config: parsimony coefficient must be non-negative")
	case c.Workers < 1:
		return fmt.Errorf("search config: workers must be positive, got %d", c.Workers)
	}
	probs := []float64{c.PCrossover, c.PSubtreeMutation, c.PHoistMutation, c.PPointMutation, c.PPointReplace}
	for _, p := range probs {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("search config: probabilities must lie in [0, 1]")
		}
	}
	if sum := c.PCrossover + c.PSubtreeMutation + c.PHoistMutation + c.PPointMutation; sum > 1+1e-9 {
		return fmt.Errorf("search config: operator probabilities sum to %g, must not exceed 1", sum)
	}
	if r := c.ConstRange; r != nil && (r[0] > r[1] || math.IsInf(r[0], 0) || math.IsInf(r[1], 0)) {
		return fmt.Errorf("search config: invalid constant range %v", *r)
	}
	return nil
}

// vocabulary is the resolved closed set of building blocks.
type vocabulary struct {
	features   []string
	funcs      []expr.Op
	byArity    map[int][]expr.Op
	constRange *[2]float64
}

// resolve validates cfg against ds. Unknown operator names yield an
// UnsupportedOperatorError, unknown or misplaced fields an UnknownFieldError.
func (c Config) resolve(ds *grid.Dataset) (*vocabulary, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	v := &vocabulary{byArity: make(map[int][]expr.Op), constRange: c.ConstRange}
	for _, name := range c.BaseFeatures {
		if _, err := ds.Field(name); err != nil {
			return nil, fmt.Errorf("base feature: %w", err)
		}
		v.features = append(v.features, name)
	}

	base, err := expr.ParseOps(c.BaseFunctions)
	if err != nil {
		return nil, fmt.Errorf("base functions: %w", err)
	}
	for _, op := range base {
		if op.IsSpatial() {
			return nil, fmt.Errorf("base functions: %w", &expr.UnsupportedOperatorError{Name: op.String(), Pos: -1})
		}
	}
	spatial, err := expr.ParseOps(c.SpatialFunctions)
	if err != nil {
		return nil, fmt.Errorf("spatial functions: %w", err)
	}
	for _, op := range spatial {
		if !op.IsSpatial() {
			return nil, fmt.Errorf("spatial functions: %w", &expr.UnsupportedOperatorError{Name: op.String(), Pos: -1})
		}
		if op == expr.OpAdvected {
			for _, name := range []string{eval.VelocityX, eval.VelocityY} {
				if _, err := ds.Field(name); err != nil {
					return nil, fmt.Errorf("advected: %w", err)
				}
			}
		}
	}

	seen := make(map[expr.Op]bool)
	for _, op := range append(base, spatial...) {
		if seen[op] {
			continue
		}
		seen[op] = true
		v.funcs = append(v.funcs, op)
		v.byArity[op.Arity()] = append(v.byArity[op.Arity()], op)
	}
	return v, nil
}
