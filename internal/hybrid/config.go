package hybrid

import (
	"fmt"
	"math"

	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
)

// DefaultMaxRetries bounds search restarts per iteration.
const DefaultMaxRetries = 3

// retrySeedStride separates the seeds of retries from the seeds of later
// iterations.
const retrySeedStride = 1 << 32

// Config controls a discovery run.
type Config struct {
	// Target names the dataset field to explain.
	Target string
	// MaxIters is the number of terms to discover at most.
	MaxIters int
	// ResidualTolerance stops the run once ‖residual‖₂/‖target‖₂ falls to
	// it. It has no default and must be positive.
	ResidualTolerance float64
	// Search configures every candidate search. Its Seed is the base seed;
	// iteration i (1-based) retry r searches with Seed + i + r·2³².
	Search search.Config

	Intercept      bool
	PerLevel       bool
	ConditionLimit float64

	// MaxRetries bounds searches repeated within one iteration after a
	// degenerate candidate or a singular fit. Negative means none; zero
	// means DefaultMaxRetries.
	MaxRetries int

	// RunID identifies the run; empty means generated.
	RunID string
}

// Validate checks the run parameters. Search vocabulary is checked against
// the dataset when the first search starts.
func (c Config) Validate() error {
	switch {
	case c.Target == "":
		return fmt.Errorf("hybrid config: target is required")
	case c.MaxIters < 1:
		return fmt.Errorf("hybrid config: max iterations must be positive, got %d", c.MaxIters)
	case !(c.ResidualTolerance > 0) || math.IsInf(c.ResidualTolerance, 0):
		return fmt.Errorf("hybrid config: residual tolerance must be a positive finite number, got %g", c.ResidualTolerance)
	case c.ConditionLimit < 0:
		return fmt.Errorf("hybrid config: condition limit must not be negative")
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return nil
}

func (c Config) maxRetries() int {
	switch {
	case c.MaxRetries < 0:
		return 0
	case c.MaxRetries == 0:
		return DefaultMaxRetries
	}
	return c.MaxRetries
}

func (c Config) seed(iteration, retry int) uint64 {
	return c.Search.Seed + uint64(iteration) + uint64(retry)*retrySeedStride
}

func (c Config) fitOptions() []regress.Option {
	opts := []regress.Option{
		regress.WithIntercept(c.Intercept),
		regress.WithPerLevel(c.PerLevel),
	}
	if c.ConditionLimit > 0 {
		opts = append(opts, regress.WithConditionLimit(c.ConditionLimit))
	}
	return opts
}
