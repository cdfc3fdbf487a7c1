package hybrid

import (
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
)

// StopReason explains why a run ended.
type StopReason string

const (
	StopMaxIters  StopReason = "max_iters"
	StopTolerance StopReason = "tolerance"
	StopExhausted StopReason = "search_exhausted"
	StopRetries   StopReason = "retries_exhausted"
	StopCancelled StopReason = "cancelled"
)

// IterationRecord captures one completed iteration. Records are created
// once and never modified.
type IterationRecord struct {
	RunID string
	// Iteration is 1-based.
	Iteration int
	// Terms are all discovered terms after this iteration, in order.
	Terms []expr.Expr
	// Candidate is the search result added in this iteration.
	Candidate search.Candidate
	// Generations is the number of generations the accepted search ran.
	Generations int
	Model       *regress.Model
	// Residual is target − prediction; it is the next iteration's search target.
	Residual *grid.Field
	// ResidualNorm is ‖Residual‖₂/‖target‖₂.
	ResidualNorm float64
	// Retries counts searches discarded before this iteration succeeded.
	Retries int
}

// Result is the outcome of Run.
type Result struct {
	RunID   string
	Target  string
	Terms   []expr.Expr
	Models  []*regress.Model
	Records []IterationRecord
	Stop    StopReason
}

// Final returns the model of the last completed iteration, or nil.
func (r *Result) Final() *regress.Model {
	if len(r.Models) == 0 {
		return nil
	}
	return r.Models[len(r.Models)-1]
}

// Summary is the serializable form of a Result.
type Summary struct {
	RunID      string             `json:"run_id"`
	Target     string             `json:"target"`
	Stop       StopReason         `json:"stop"`
	Iterations []IterationSummary `json:"iterations"`
}

// IterationSummary is the serializable form of an IterationRecord.
type IterationSummary struct {
	Iteration            int       `json:"iteration"`
	Candidate            string    `json:"candidate"`
	CandidateCorrelation float64   `json:"candidate_correlation"`
	Expressions          []string  `json:"expressions"`
	Coefficients         []float64 `json:"coefficients"`
	Intercept            float64   `json:"intercept,omitempty"`
	R2                   float64   `json:"r2"`
	Correlation          float64   `json:"correlation"`
	ResidualNorm         float64   `json:"residual_norm"`
}

// Summary returns the ordered expressions and coefficient vectors of
// every iteration.
func (r *Result) Summary() Summary {
	s := Summary{RunID: r.RunID, Target: r.Target, Stop: r.Stop, Iterations: []IterationSummary{}}
	for _, rec := range r.Records {
		s.Iterations = append(s.Iterations, rec.Summary())
	}
	return s
}

// Summary returns the serializable form of the record.
func (rec IterationRecord) Summary() IterationSummary {
	exprs := make([]string, len(rec.Terms))
	for i, t := range rec.Terms {
		exprs[i] = t.String()
	}
	return IterationSummary{
		Iteration:            rec.Iteration,
		Candidate:            rec.Candidate.Expr.String(),
		CandidateCorrelation: rec.Candidate.Correlation,
		Expressions:          exprs,
		Coefficients:         append([]float64(nil), rec.Model.Coefficients...),
		Intercept:            rec.Model.Intercept,
		R2:                   rec.Model.R2,
		Correlation:          rec.Model.Correlation,
		ResidualNorm:         rec.ResidualNorm,
	}
}
