package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/hybrid"
)

// CreateRun inserts a run row. cfg is stored as JSON. The run's created_seq
// is one past the largest existing value. A duplicate id is silently ignored.
func (s *Store) CreateRun(ctx context.Context, id, target string, cfg any) error {
	cfgJSON, err := marshalConfig(cfg)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_seq, target, config_json)
		SELECT ?, COALESCE(MAX(created_seq), 0) + 1, ?, ? FROM runs WHERE true
		ON CONFLICT(id) DO NOTHING
	`, id, target, cfgJSON)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records why a run stopped. Returns an error wrapping
// sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, id string, stop hybrid.StopReason) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET stop_reason = ? WHERE id = ?`, string(stop), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %q: %w", id, sql.ErrNoRows)
	}
	return nil
}

// WriteIteration persists one iteration record and the terms of its model
// in a single transaction. The run must exist. Writing the same
// (run, iteration) again is a no-op.
//
// For per-level models the level-0 coefficient vector is stored.
func (s *Store) WriteIteration(ctx context.Context, rec hybrid.IterationRecord) error {
	sum := rec.Summary()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write iteration: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO iterations
		(run_id, iteration, candidate, candidate_id, candidate_corr, intercept, r2, correlation, residual_norm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, iteration) DO NOTHING
	`,
		rec.RunID,
		sum.Iteration,
		sum.Candidate,
		expr.ID(rec.Candidate.Expr),
		nullable(sum.CandidateCorrelation),
		nullable(sum.Intercept),
		nullable(sum.R2),
		nullable(sum.Correlation),
		nullable(sum.ResidualNorm),
	)
	if err != nil {
		return fmt.Errorf("write iteration %d: %w", sum.Iteration, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write iteration %d: %w", sum.Iteration, err)
	}
	if n == 0 {
		return nil
	}

	for pos, term := range rec.Terms {
		var coef float64
		if pos < len(sum.Coefficients) {
			coef = sum.Coefficients[pos]
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO terms (run_id, iteration, position, expression, expression_id, coefficient)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.RunID, sum.Iteration, pos, term.String(), expr.ID(term), nullable(coef)); err != nil {
			return fmt.Errorf("write iteration %d term %d: %w", sum.Iteration, pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write iteration %d: commit: %w", sum.Iteration, err)
	}
	return nil
}

// Recorder returns a hybrid.Recorder that writes every record with ctx.
func (s *Store) Recorder(ctx context.Context) hybrid.Recorder {
	return func(rec hybrid.IterationRecord) error {
		return s.WriteIteration(ctx, rec)
	}
}
