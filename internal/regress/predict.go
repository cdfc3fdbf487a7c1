package regress

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/grid"
)

// Predict evaluates the model over ds.
func (m *Model) Predict(ds *grid.Dataset) (*grid.Field, error) {
	return m.PredictWith(eval.New(ds))
}

// PredictWith evaluates the model with ev.
func (m *Model) PredictWith(ev *eval.Evaluator) (*grid.Field, error) {
	ds := ev.Dataset()
	out := ds.Constant(0).Values()
	cols := make([][]float64, len(m.Terms))
	for i, t := range m.Terms {
		f, err := ev.Evaluate(t)
		if err != nil {
			return nil, fmt.Errorf("predict term %d (%s): %w", i, t, err)
		}
		cols[i] = f.Values()
	}

	if !m.PerLevel() {
		predictRows(out, nil, cols, m.Coefficients, m.Intercept)
		return ds.NewField(out)
	}
	if ds.Levels() != len(m.LevelCoefficients) {
		return nil, &grid.ShapeMismatchError{
			Context: "per-level model levels",
			Want:    []int{len(m.LevelCoefficients)},
			Got:     []int{ds.Levels()},
		}
	}
	ref := ds.Constant(0)
	for lev, coef := range m.LevelCoefficients {
		predictRows(out, ref.Level(lev), cols, coef, m.LevelIntercepts[lev])
	}
	return ds.NewField(out)
}

// Residual returns target − prediction as a new field.
func Residual(target, prediction *grid.Field) (*grid.Field, error) {
	if !target.SameShape(prediction) {
		return nil, &grid.ShapeMismatchError{
			Context: "residual",
			Want:    target.Shape(),
			Got:     prediction.Shape(),
		}
	}
	out := make([]float64, target.Len())
	floats.SubTo(out, target.Values(), prediction.Values())
	return target.WithValues(out), nil
}

// RelativeNorm returns ‖r‖₂/‖ref‖₂, or ‖r‖₂ when ref is zero.
func RelativeNorm(r, ref *grid.Field) float64 {
	n := floats.Norm(r.Values(), 2)
	if d := floats.Norm(ref.Values(), 2); d > 0 {
		return n / d
	}
	return n
}
