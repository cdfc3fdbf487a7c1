package regress

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
	"github.com/roach88/hybridsr/internal/testutil"
)

func synthetic(t *testing.T, levels int) *grid.Dataset {
	t.Helper()
	return testutil.Dataset(t, grid.SyntheticOptions{NX: 16, NY: 16, Batch: 2, Levels: levels, Seed: 21})
}

func field(t *testing.T, ds *grid.Dataset, text string) *grid.Field {
	t.Helper()
	return testutil.Eval(t, ds, text)
}

func terms(texts ...string) []expr.Expr {
	out := make([]expr.Expr, len(texts))
	for i, s := range texts {
		out[i] = expr.MustParse(s)
	}
	return out
}

func TestFit_RecoversExactCombination(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "add(add(mul(3, inputs), mul(-0.5, ddx(inputs))), mul(0.002, laplacian(inputs)))")

	m, err := Fit(ds, terms("inputs", "ddx(inputs)", "laplacian(inputs)"), target)
	require.NoError(t, err)

	want := []float64{3, -0.5, 0.002}
	for i, w := range want {
		assert.InDelta(t, w, m.Coefficients[i], 1e-6*math.Abs(w), "coefficient %d", i)
	}
	assert.False(t, m.HasIntercept)
	assert.Equal(t, 0.0, m.Intercept)
	assert.InDelta(t, 1, m.R2, 1e-9)
	assert.InDelta(t, 1, m.Correlation, 1e-9)
	assert.Less(t, m.ResidualNorm, 1e-9)
	assert.Greater(t, m.Condition, 0.0)
}

func TestFit_Intercept(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "add(mul(2, inputs), 5)")

	m, err := Fit(ds, terms("inputs"), target, WithIntercept(true))
	require.NoError(t, err)
	assert.True(t, m.HasIntercept)
	assert.InDelta(t, 2, m.Coefficients[0], 1e-9)
	assert.InDelta(t, 5, m.Intercept, 1e-9)
	assert.Contains(t, m.String(), "2*inputs")
}

func TestFit_Singular(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "inputs")

	tests := []struct {
		name  string
		terms []expr.Expr
	}{
		{"duplicate columns", terms("inputs", "mul(2, inputs)")},
		{"zero column", terms("inputs", "ddx(3)")},
		{"non-finite column", terms("div(inputs, 0)")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(ds, tt.terms, target)
			require.Error(t, err)
			assert.True(t, IsSingularDesignMatrix(err), "got %v", err)
		})
	}
}

func TestFit_ConditionLimit(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "inputs")
	// inputs and its Laplacian are correlated, so the condition number exceeds 1.
	ts := terms("inputs", "laplacian(inputs)")

	_, err := Fit(ds, ts, target)
	require.NoError(t, err)

	_, err = Fit(ds, ts, target, WithConditionLimit(1))
	require.Error(t, err)
	assert.True(t, IsSingularDesignMatrix(err))
}

func TestFit_Errors(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "inputs")

	_, err := Fit(ds, nil, target)
	assert.Error(t, err)

	_, err = Fit(ds, terms("nope"), target)
	assert.True(t, grid.IsUnknownField(err))

	_, err = Fit(ds, terms("inputs"), target, WithPerLevel(true))
	assert.Error(t, err)

	other, err := grid.NewField([]string{grid.DimY, grid.DimX}, []int{2, 2}, make([]float64, 4))
	require.NoError(t, err)
	_, err = Fit(ds, terms("inputs"), other)
	assert.True(t, grid.IsShapeMismatch(err))
}

func TestFit_PerLevel(t *testing.T) {
	ds := synthetic(t, 2)
	q, err := ds.Field("inputs")
	require.NoError(t, err)

	// level 0: 2·q, level 1: −q + ddy(q)
	dy := field(t, ds, "ddy(inputs)")
	y := make([]float64, q.Len())
	for _, i := range q.Level(0) {
		y[i] = 2 * q.Values()[i]
	}
	for _, i := range q.Level(1) {
		y[i] = -q.Values()[i] + dy.Values()[i]
	}
	target, err := ds.NewField(y)
	require.NoError(t, err)

	m, err := Fit(ds, terms("inputs", "ddy(inputs)"), target, WithPerLevel(true))
	require.NoError(t, err)
	require.True(t, m.PerLevel())
	assert.InDelta(t, 2, m.LevelCoefficients[0][0], 1e-9)
	assert.InDelta(t, 0, m.LevelCoefficients[0][1], 1e-9)
	assert.InDelta(t, -1, m.LevelCoefficients[1][0], 1e-9)
	assert.InDelta(t, 1, m.LevelCoefficients[1][1], 1e-9)
	assert.Equal(t, m.LevelCoefficients[0], m.Coefficients)
	assert.Less(t, m.ResidualNorm, 1e-9)

	pred, err := m.Predict(ds)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred.Values(), 1e-9)

	// A single global fit cannot explain both levels.
	global, err := Fit(ds, terms("inputs", "ddy(inputs)"), target)
	require.NoError(t, err)
	assert.Greater(t, global.ResidualNorm, 0.01)
}

func TestPredictAndResidual(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "add(mul(1.5, inputs), laplacian(inputs))")

	m, err := Fit(ds, terms("inputs", "laplacian(inputs)"), target)
	require.NoError(t, err)
	pred, err := m.Predict(ds)
	require.NoError(t, err)

	r, err := Residual(target, pred)
	require.NoError(t, err)
	assert.Less(t, RelativeNorm(r, target), 1e-9)
	assert.InDelta(t, m.ResidualNorm, RelativeNorm(r, target), 1e-12)

	other, err := grid.NewField([]string{grid.DimY, grid.DimX}, []int{2, 2}, make([]float64, 4))
	require.NoError(t, err)
	_, err = Residual(target, other)
	assert.True(t, grid.IsShapeMismatch(err))
}

func TestFit_Deterministic(t *testing.T) {
	ds := synthetic(t, 0)
	target := field(t, ds, "add(mul(inputs, inputs), ddx(inputs))")
	ts := terms("mul(inputs, inputs)", "ddx(laplacian(inputs))")

	a, err := Fit(ds, ts, target)
	require.NoError(t, err)
	b, err := Fit(ds, ts, target)
	require.NoError(t, err)
	assert.Equal(t, a.Coefficients, b.Coefficients)
	assert.Equal(t, a.R2, b.R2)
}
