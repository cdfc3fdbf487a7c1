package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hybridsr/internal/hybrid"
	"github.com/roach88/hybridsr/internal/store"
)

func sampleResult() *Result {
	r := NewResult("run-1")
	r.Stop = hybrid.StopMaxIters
	r.Iterations = []hybrid.IterationSummary{
		{
			Iteration:    1,
			Candidate:    "mul(inputs, inputs)",
			Expressions:  []string{"mul(inputs, inputs)"},
			Coefficients: []float64{1e7},
			Correlation:  0.97,
			ResidualNorm: 0.24,
		},
		{
			Iteration:    2,
			Candidate:    "ddx(laplacian(inputs))",
			Expressions:  []string{"mul(inputs, inputs)", "ddx(laplacian(inputs))"},
			Coefficients: []float64{1e7, 1},
			Correlation:  0.99999,
			ResidualNorm: 0.004,
		},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertStopReason, Stop: "max_iters"},
		{Type: AssertIterationCount, Count: 2},
		{Type: AssertIterationCount, Max: 3},
		{Type: AssertMinCorrelation, Iteration: 1, Value: 0.95},
		{Type: AssertMinCorrelation, Value: 0.9999},
		{Type: AssertMaxResidualNorm, Value: 0.01},
		{Type: AssertTermPresent, Expression: "ddx( laplacian(inputs) )"},
		{Type: AssertTermOrder, Expressions: []string{"mul(inputs, inputs)", "ddx(laplacian(inputs))"}},
		{Type: AssertOperatorUsed, Operator: "laplacian"},
		{Type: AssertCoefficient, Expression: "mul(inputs, inputs)", Value: 1.0000001e7, Tolerance: 1e-6},
	}
	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions, nil))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"stop", Assertion{Type: AssertStopReason, Stop: "tolerance"}, "Expected: tolerance"},
		{"count", Assertion{Type: AssertIterationCount, Count: 3}, "3 iterations"},
		{"max", Assertion{Type: AssertIterationCount, Max: 1}, "at most 1 iterations"},
		{"correlation", Assertion{Type: AssertMinCorrelation, Iteration: 1, Value: 0.99}, "iteration 1 correlation"},
		{"missing iteration", Assertion{Type: AssertMinCorrelation, Iteration: 5, Value: 0.5}, "iteration 5 to exist"},
		{"residual", Assertion{Type: AssertMaxResidualNorm, Iteration: 1, Value: 0.1}, "residual norm <= 0.1"},
		{"term", Assertion{Type: AssertTermPresent, Expression: "laplacian(inputs)"}, "not found in final model"},
		{"order", Assertion{Type: AssertTermOrder, Expressions: []string{"ddx(laplacian(inputs))", "mul(inputs, inputs)"}}, "terms in order"},
		{"operator", Assertion{Type: AssertOperatorUsed, Operator: "ddy"}, "a term applying ddy"},
		{"coefficient", Assertion{Type: AssertCoefficient, Expression: "ddx(laplacian(inputs))", Value: 2}, "coefficient 2"},
		{"unknown", Assertion{Type: "trace_order"}, "unknown assertion type"},
		{"final_state without store", Assertion{Type: AssertFinalState, Table: "runs", Expect: map[string]any{"id": "x"}}, "requires database context"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion}, nil)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_ListsTerms(t *testing.T) {
	err := &AssertionError{Type: "term_present", Expected: "x", Actual: "y", Terms: []string{"a", "b"}}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: term_present")
	assert.Contains(t, msg, "[2] b")
}

func TestAssertFinalState(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.CreateRun(ctx, "run-1", "target", nil))
	require.NoError(t, st.CreateRun(ctx, "run-2", "target", nil))
	require.NoError(t, st.FinishRun(ctx, "run-1", hybrid.StopTolerance))

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"match", Assertion{Table: "runs", Where: map[string]any{"id": "run-1"}, Expect: map[string]any{"stop_reason": "tolerance", "created_seq": 1}}, ""},
		{"mismatch", Assertion{Table: "runs", Where: map[string]any{"id": "run-2"}, Expect: map[string]any{"stop_reason": "tolerance"}}, `field "stop_reason"`},
		{"no row", Assertion{Table: "runs", Where: map[string]any{"id": "run-9"}, Expect: map[string]any{"target": "target"}}, "row not found"},
		{"ambiguous", Assertion{Table: "runs", Expect: map[string]any{"target": "target"}}, "multiple rows matched"},
		{"missing column", Assertion{Table: "runs", Where: map[string]any{"id": "run-1"}, Expect: map[string]any{"nope": 1}}, "not present"},
		{"bad table", Assertion{Table: "runs; DROP TABLE runs", Expect: map[string]any{"id": "x"}}, "invalid table name"},
		{"bad column", Assertion{Table: "runs", Where: map[string]any{"id OR 1=1": "x"}, Expect: map[string]any{"id": "x"}}, "invalid column name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStateValuesEqual(t *testing.T) {
	assert.True(t, stateValuesEqual("a", "a"))
	assert.True(t, stateValuesEqual("a", []byte("a")))
	assert.True(t, stateValuesEqual(3, int64(3)))
	assert.True(t, stateValuesEqual(0.5, 0.5+1e-12))
	assert.True(t, stateValuesEqual(true, int64(1)))
	assert.True(t, stateValuesEqual(nil, nil))
	assert.False(t, stateValuesEqual(3, "3"))
	assert.False(t, stateValuesEqual(0.5, 0.6))
	assert.False(t, stateValuesEqual(nil, int64(0)))
}
