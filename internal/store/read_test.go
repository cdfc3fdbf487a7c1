package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/hybrid"
)

func TestListRuns_OrderedBySequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("ListRuns() on empty store = %v, want empty non-nil slice", runs)
	}

	for _, id := range []string{"zeta", "alpha", "mid"} {
		createTestRun(t, s, id)
	}
	if err := s.WriteIteration(ctx, createTestRecord("alpha", 1, "inputs")); err != nil {
		t.Fatalf("WriteIteration() failed: %v", err)
	}

	runs, err = s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if want := []string{"zeta", "alpha", "mid"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("run order = %v, want %v", ids, want)
	}
	if runs[1].Iterations != 1 || runs[0].Iterations != 0 {
		t.Errorf("iteration counts = (%d, %d), want (0, 1)", runs[0].Iterations, runs[1].Iterations)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadIterations_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	first := createTestRecord("run-1", 1, "mul(inputs, inputs)")
	second := createTestRecord("run-1", 2, "mul(inputs, inputs)", "ddx(laplacian(inputs))")
	second.Model.Intercept = 0.5
	second.Model.HasIntercept = true

	// Written out of order; read back by iteration.
	if err := s.WriteIteration(ctx, second); err != nil {
		t.Fatalf("WriteIteration(2) failed: %v", err)
	}
	if err := s.WriteIteration(ctx, first); err != nil {
		t.Fatalf("WriteIteration(1) failed: %v", err)
	}

	got, err := s.ReadIterations(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadIterations() failed: %v", err)
	}
	want := []hybrid.IterationSummary{first.Summary(), second.Summary()}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("iteration %d = %+v, want %+v", i+1, got[i], want[i])
		}
	}
}

func TestReadIterations_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadIterations(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ReadIterations() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadIterations(missing) = %v, want empty non-nil slice", got)
	}
}

func TestFindTerm(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")
	createTestRun(t, s, "run-2")

	records := []struct {
		run  string
		it   int
		text []string
	}{
		{"run-1", 1, []string{"laplacian(inputs)"}},
		{"run-1", 2, []string{"laplacian(inputs)", "inputs"}},
		{"run-2", 1, []string{"inputs", "laplacian(inputs)"}},
	}
	for _, r := range records {
		if err := s.WriteIteration(ctx, createTestRecord(r.run, r.it, r.text...)); err != nil {
			t.Fatalf("WriteIteration() failed: %v", err)
		}
	}

	got, err := s.FindTerm(ctx, expr.ID(expr.MustParse("laplacian(inputs)")))
	if err != nil {
		t.Fatalf("FindTerm() failed: %v", err)
	}
	want := []Occurrence{
		{RunID: "run-1", Iteration: 1, Position: 0, Coefficient: 1},
		{RunID: "run-1", Iteration: 2, Position: 0, Coefficient: 1},
		{RunID: "run-2", Iteration: 1, Position: 1, Coefficient: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FindTerm() = %+v, want %+v", got, want)
	}
}
