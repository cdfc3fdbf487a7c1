package regress

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// DefaultConditionLimit is the largest accepted condition number of the
// column-scaled design matrix.
const DefaultConditionLimit = 1e12

type options struct {
	intercept      bool
	perLevel       bool
	conditionLimit float64
	evaluator      *eval.Evaluator
}

// Option configures Fit.
type Option func(*options)

// WithIntercept adds a constant column. The default is no intercept.
func WithIntercept(on bool) Option {
	return func(o *options) { o.intercept = on }
}

// WithPerLevel fits an independent coefficient vector for every vertical
// level. The dataset must have a lev dimension.
func WithPerLevel(on bool) Option {
	return func(o *options) { o.perLevel = on }
}

// WithConditionLimit overrides DefaultConditionLimit.
func WithConditionLimit(limit float64) Option {
	return func(o *options) { o.conditionLimit = limit }
}

// WithEvaluator evaluates terms with ev, which must read the same dataset
// passed to Fit. Use it to share a spectral cache.
func WithEvaluator(ev *eval.Evaluator) Option {
	return func(o *options) { o.evaluator = ev }
}

// Model is a fitted linear combination of terms.
type Model struct {
	// Terms and Coefficients are aligned positionally. For per-level fits
	// Coefficients holds the level-0 vector.
	Terms        []expr.Expr
	Coefficients []float64
	Intercept    float64
	HasIntercept bool

	// LevelCoefficients and LevelIntercepts are set for per-level fits,
	// indexed by level.
	LevelCoefficients [][]float64
	LevelIntercepts   []float64

	// R2 is the coefficient of determination on the training data.
	R2 float64
	// Correlation is the Pearson correlation of prediction and target.
	Correlation float64
	// ResidualNorm is ‖target − prediction‖₂ / ‖target‖₂.
	ResidualNorm float64
	// Condition is the largest condition number met while solving.
	Condition float64
}

// PerLevel reports whether the model holds one coefficient vector per level.
func (m *Model) PerLevel() bool { return m.LevelCoefficients != nil }

// String renders the model as "c0*term0 + c1*term1 [+ b]".
func (m *Model) String() string {
	var b strings.Builder
	for i, t := range m.Terms {
		if i > 0 {
			b.WriteString(" + ")
		}
		fmt.Fprintf(&b, "%.6g*%s", m.Coefficients[i], t)
	}
	if m.HasIntercept {
		fmt.Fprintf(&b, " + %.6g", m.Intercept)
	}
	return b.String()
}

// Fit solves target ≈ Σ cᵢ·termsᵢ (+ b) in the least-squares sense.
func Fit(ds *grid.Dataset, terms []expr.Expr, target *grid.Field, opts ...Option) (*Model, error) {
	o := options{conditionLimit: DefaultConditionLimit}
	for _, opt := range opts {
		opt(&o)
	}
	if len(terms) == 0 && !o.intercept {
		return nil, fmt.Errorf("fit: no terms")
	}
	if err := ds.Conforms(target); err != nil {
		return nil, fmt.Errorf("fit target: %w", err)
	}
	if o.perLevel && len(ds.Coords().Lev) == 0 {
		return nil, fmt.Errorf("fit: per-level fit requires a %q dimension", grid.DimLev)
	}
	ev := o.evaluator
	if ev == nil {
		ev = eval.New(ds)
	}

	cols := make([][]float64, len(terms))
	for i, t := range terms {
		f, err := ev.Evaluate(t)
		if err != nil {
			return nil, fmt.Errorf("fit term %d (%s): %w", i, t, err)
		}
		for _, v := range f.Values() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &SingularDesignMatrixError{Reason: "non-finite column", Term: t.String(), Level: -1}
			}
		}
		cols[i] = f.Values()
	}

	m := &Model{
		Terms:        append([]expr.Expr(nil), terms...),
		HasIntercept: o.intercept,
	}
	y := target.Values()
	pred := make([]float64, len(y))

	if o.perLevel {
		nlev := ds.Levels()
		m.LevelCoefficients = make([][]float64, nlev)
		m.LevelIntercepts = make([]float64, nlev)
		for lev := 0; lev < nlev; lev++ {
			rows := target.Level(lev)
			coef, b, cond, err := solve(rows, cols, terms, y, o)
			if err != nil {
				var se *SingularDesignMatrixError
				if errors.As(err, &se) {
					se.Level = lev
				}
				return nil, err
			}
			m.LevelCoefficients[lev] = coef
			m.LevelIntercepts[lev] = b
			m.Condition = max(m.Condition, cond)
			predictRows(pred, rows, cols, coef, b)
		}
		m.Coefficients = m.LevelCoefficients[0]
		m.Intercept = m.LevelIntercepts[0]
	} else {
		coef, b, cond, err := solve(nil, cols, terms, y, o)
		if err != nil {
			return nil, err
		}
		m.Coefficients, m.Intercept, m.Condition = coef, b, cond
		predictRows(pred, nil, cols, coef, b)
	}

	m.R2, m.Correlation, m.ResidualNorm = diagnostics(y, pred)
	return m, nil
}

// solve fits one coefficient vector over the given rows (all rows when nil).
func solve(rows []int, cols [][]float64, terms []expr.Expr, y []float64, o options) ([]float64, float64, float64, error) {
	n := len(y)
	if rows != nil {
		n = len(rows)
	}
	p := len(cols)
	if o.intercept {
		p++
	}
	if n < p {
		return nil, 0, 0, &SingularDesignMatrixError{
			Reason: fmt.Sprintf("%d rows for %d unknowns", n, p),
			Level:  -1,
		}
	}
	row := func(r int) int {
		if rows == nil {
			return r
		}
		return rows[r]
	}

	data := make([]float64, n*p)
	scale := make([]float64, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		if j < len(cols) {
			for r := range col {
				col[r] = cols[j][row(r)]
			}
		} else {
			for r := range col {
				col[r] = 1
			}
		}
		norm := floats.Norm(col, 2)
		if norm == 0 {
			se := &SingularDesignMatrixError{Reason: "zero column", Level: -1}
			if j < len(terms) {
				se.Term = terms[j].String()
			}
			return nil, 0, 0, se
		}
		scale[j] = norm
		for r, v := range col {
			data[r*p+j] = v / norm
		}
	}
	b := make([]float64, n)
	for r := range b {
		b[r] = y[row(r)]
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(n, p, data))
	cond := qr.Cond()
	if math.IsNaN(cond) || cond > o.conditionLimit {
		return nil, 0, 0, &SingularDesignMatrixError{Reason: "ill-conditioned", Condition: cond, Level: -1}
	}
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, mat.NewVecDense(n, b)); err != nil {
		var c mat.Condition
		if errors.As(err, &c) {
			return nil, 0, 0, &SingularDesignMatrixError{Reason: "ill-conditioned", Condition: float64(c), Level: -1}
		}
		return nil, 0, 0, fmt.Errorf("fit: %w", err)
	}

	coef := make([]float64, len(cols))
	for j := range coef {
		coef[j] = x.AtVec(j) / scale[j]
	}
	var intercept float64
	if o.intercept {
		intercept = x.AtVec(len(cols)) / scale[len(cols)]
	}
	return coef, intercept, cond, nil
}

func predictRows(pred []float64, rows []int, cols [][]float64, coef []float64, b float64) {
	apply := func(i int) {
		v := b
		for j, c := range coef {
			v += c * cols[j][i]
		}
		pred[i] = v
	}
	if rows == nil {
		for i := range pred {
			apply(i)
		}
		return
	}
	for _, i := range rows {
		apply(i)
	}
}

// diagnostics returns R², Pearson correlation and relative residual norm.
// Degenerate statistics (constant target or prediction) are reported as 0.
func diagnostics(y, pred []float64) (r2, corr, relNorm float64) {
	res := make([]float64, len(y))
	floats.SubTo(res, y, pred)
	ssRes := floats.Dot(res, res)

	mean := stat.Mean(y, nil)
	var ssTot float64
	for _, v := range y {
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	corr = stat.Correlation(pred, y, nil)
	if math.IsNaN(corr) || math.IsInf(corr, 0) {
		corr = 0
	}

	relNorm = math.Sqrt(ssRes)
	if yn := floats.Norm(y, 2); yn > 0 {
		relNorm /= yn
	}
	return r2, corr, relNorm
}
