package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/regress"
	"github.com/roach88/hybridsr/internal/search"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun inserts a run with a minimal configuration.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateRun(context.Background(), id, "target", map[string]any{"max_iters": 2}); err != nil {
		t.Fatalf("CreateRun(%q) failed: %v", id, err)
	}
}

// createTestRecord builds an iteration record whose model holds terms
// with coefficients 1, 2, ...
func createTestRecord(runID string, iteration int, terms ...string) hybrid.IterationRecord {
	parsed := make([]expr.Expr, len(terms))
	coefs := make([]float64, len(terms))
	for i, text := range terms {
		parsed[i] = expr.MustParse(text)
		coefs[i] = float64(i + 1)
	}
	last := parsed[len(parsed)-1]
	return hybrid.IterationRecord{
		RunID:     runID,
		Iteration: iteration,
		Terms:     parsed,
		Candidate: search.Candidate{Expr: last, Correlation: -0.5},
		Model: &regress.Model{
			Terms:        parsed,
			Coefficients: coefs,
			R2:           0.75,
			Correlation:  0.9,
			ResidualNorm: 0.25,
		},
		ResidualNorm: 0.25,
	}
}
