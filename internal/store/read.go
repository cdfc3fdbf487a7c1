package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hybridsr/internal/hybrid"
)

// Run is a stored run header.
type Run struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Target     string `json:"target"`
	ConfigJSON string `json:"config"`
	// Stop is empty while the run is in progress or if it crashed.
	Stop       hybrid.StopReason `json:"stop"`
	Iterations int               `json:"iterations"`
}

// Occurrence locates a term within a stored model.
type Occurrence struct {
	RunID       string  `json:"run_id"`
	Iteration   int     `json:"iteration"`
	Position    int     `json:"position"`
	Coefficient float64 `json:"coefficient"`
}

const runColumns = `
	SELECT r.id, r.created_seq, r.target, r.config_json, r.stop_reason,
	       (SELECT COUNT(*) FROM iterations i WHERE i.run_id = r.id)
	FROM runs r
`

// ListRuns returns all runs ordered by created_seq.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, runColumns+`ORDER BY r.created_seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, runColumns+`WHERE r.id = ?`, id))
	if err != nil {
		return Run{}, fmt.Errorf("read run %q: %w", id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var stop string
	if err := row.Scan(&r.ID, &r.Seq, &r.Target, &r.ConfigJSON, &stop, &r.Iterations); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Stop = hybrid.StopReason(stop)
	return r, nil
}

// ReadIterations returns the iterations of a run ordered by iteration, each
// with its terms ordered by position. Returns an empty slice for an unknown
// run.
func (s *Store) ReadIterations(ctx context.Context, runID string) ([]hybrid.IterationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, candidate, candidate_corr, intercept, r2, correlation, residual_norm
		FROM iterations
		WHERE run_id = ?
		ORDER BY iteration ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	out := []hybrid.IterationSummary{}
	index := make(map[int]int)
	for rows.Next() {
		var it hybrid.IterationSummary
		var corr, intercept, r2, fit, norm sql.NullFloat64
		if err := rows.Scan(&it.Iteration, &it.Candidate, &corr, &intercept, &r2, &fit, &norm); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		it.CandidateCorrelation = fromNullable(corr)
		it.Intercept = fromNullable(intercept)
		it.R2 = fromNullable(r2)
		it.Correlation = fromNullable(fit)
		it.ResidualNorm = fromNullable(norm)
		it.Expressions = []string{}
		it.Coefficients = []float64{}
		index[it.Iteration] = len(out)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	rows.Close()

	terms, err := s.db.QueryContext(ctx, `
		SELECT iteration, expression, coefficient
		FROM terms
		WHERE run_id = ?
		ORDER BY iteration ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer terms.Close()

	for terms.Next() {
		var iteration int
		var text string
		var coef sql.NullFloat64
		if err := terms.Scan(&iteration, &text, &coef); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		i, ok := index[iteration]
		if !ok {
			continue
		}
		out[i].Expressions = append(out[i].Expressions, text)
		out[i].Coefficients = append(out[i].Coefficients, fromNullable(coef))
	}
	if err := terms.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return out, nil
}

// FindTerm returns every stored model term with the given expression id
// (see expr.ID), ordered by run creation, iteration and position.
func (s *Store) FindTerm(ctx context.Context, expressionID string) ([]Occurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.run_id, t.iteration, t.position, t.coefficient
		FROM terms t
		JOIN runs r ON r.id = t.run_id
		WHERE t.expression_id = ?
		ORDER BY r.created_seq ASC, t.iteration ASC, t.position ASC
	`, expressionID)
	if err != nil {
		return nil, fmt.Errorf("query terms: %w", err)
	}
	defer rows.Close()

	out := []Occurrence{}
	for rows.Next() {
		var o Occurrence
		var coef sql.NullFloat64
		if err := rows.Scan(&o.RunID, &o.Iteration, &o.Position, &coef); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		o.Coefficient = fromNullable(coef)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return out, nil
}
