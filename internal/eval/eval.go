package eval

import (
	"fmt"

	"github.com/roach88/hybridsr/internal/expr"
	"github.com/roach88/hybridsr/internal/grid"
)

// Advection velocity fields required by the advected operator.
const (
	VelocityX = "u"
	VelocityY = "v"
)

var binaryFuncs = map[expr.Op]func(a, b float64) float64{
	expr.OpAdd: func(a, b float64) float64 { return a + b },
	expr.OpSub: func(a, b float64) float64 { return a - b },
	expr.OpMul: func(a, b float64) float64 { return a * b },
	expr.OpDiv: func(a, b float64) float64 { return a / b },
}

var unaryFuncs = map[expr.Op]func(a float64) float64{
	expr.OpNeg: func(a float64) float64 { return -a },
}

// value is an intermediate result: a field, or a scalar when f is nil.
type value struct {
	s float64
	f *grid.Field
}

// Evaluator evaluates expressions against one dataset.
// It is safe for concurrent use when its Cache is.
type Evaluator struct {
	ds    *grid.Dataset
	cache *Cache

	k, l       []float64
	nyqX, nyqY int
	template   *grid.Field
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCache memoizes spectral sub-results in c.
func WithCache(c *Cache) Option {
	return func(ev *Evaluator) { ev.cache = c }
}

// New returns an Evaluator over ds.
func New(ds *grid.Dataset, opts ...Option) *Evaluator {
	c := ds.Coords()
	ev := &Evaluator{
		ds:       ds,
		k:        c.K,
		l:        c.L,
		nyqX:     grid.NyquistIndex(len(c.K)),
		nyqY:     grid.NyquistIndex(len(c.L)),
		template: ds.Constant(0),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Dataset returns the dataset the evaluator reads from.
func (ev *Evaluator) Dataset() *grid.Dataset { return ev.ds }

// Evaluate evaluates e over ds without caching.
func Evaluate(e expr.Expr, ds *grid.Dataset) (*grid.Field, error) {
	return New(ds).Evaluate(e)
}

// EvaluateString parses text and evaluates it over ds.
func EvaluateString(text string, ds *grid.Dataset) (*grid.Field, error) {
	e, err := expr.Parse(text)
	if err != nil {
		return nil, err
	}
	return Evaluate(e, ds)
}

// Evaluate returns a newly allocated field with the dataset's shape.
// Scalar results are broadcast.
func (ev *Evaluator) Evaluate(e expr.Expr) (*grid.Field, error) {
	if e == nil {
		return nil, fmt.Errorf("evaluate: nil expression")
	}
	v, err := ev.eval(e)
	if err != nil {
		return nil, err
	}
	if v.f == nil {
		return ev.ds.Constant(v.s), nil
	}
	if _, ok := e.(expr.FieldRef); ok {
		return v.f.Clone(), nil
	}
	return v.f, nil
}

func (ev *Evaluator) eval(e expr.Expr) (value, error) {
	switch n := e.(type) {
	case expr.Literal:
		return value{s: n.Value}, nil

	case expr.FieldRef:
		f, err := ev.ds.Field(n.Name)
		if err != nil {
			return value{}, err
		}
		return value{f: f}, nil

	case expr.Unary:
		if n.Op == expr.OpAdvected {
			return ev.advected(n.X)
		}
		if n.Op.IsSpatial() {
			s, err := ev.spectrum(n)
			if err != nil {
				return value{}, err
			}
			if s == nil {
				return value{s: 0}, nil
			}
			return value{f: s.Real(ev.template)}, nil
		}
		fn, ok := unaryFuncs[n.Op]
		if !ok {
			return value{}, &expr.UnsupportedOperatorError{Name: n.Op.String(), Pos: -1}
		}
		x, err := ev.eval(n.X)
		if err != nil {
			return value{}, err
		}
		return mapUnary(fn, x), nil

	case expr.Binary:
		fn, ok := binaryFuncs[n.Op]
		if !ok {
			return value{}, &expr.UnsupportedOperatorError{Name: n.Op.String(), Pos: -1}
		}
		a, err := ev.eval(n.L)
		if err != nil {
			return value{}, err
		}
		b, err := ev.eval(n.R)
		if err != nil {
			return value{}, err
		}
		return mapBinary(n.Op, fn, a, b)
	}
	return value{}, fmt.Errorf("evaluate: unexpected node %T", e)
}

func mapUnary(fn func(float64) float64, x value) value {
	if x.f == nil {
		return value{s: fn(x.s)}
	}
	in := x.f.Values()
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return value{f: x.f.WithValues(out)}
}

func mapBinary(op expr.Op, fn func(a, b float64) float64, a, b value) (value, error) {
	switch {
	case a.f == nil && b.f == nil:
		return value{s: fn(a.s, b.s)}, nil

	case a.f == nil:
		in := b.f.Values()
		out := make([]float64, len(in))
		for i, y := range in {
			out[i] = fn(a.s, y)
		}
		return value{f: b.f.WithValues(out)}, nil

	case b.f == nil:
		in := a.f.Values()
		out := make([]float64, len(in))
		for i, x := range in {
			out[i] = fn(x, b.s)
		}
		return value{f: a.f.WithValues(out)}, nil
	}

	if !a.f.SameShape(b.f) {
		return value{}, &grid.ShapeMismatchError{
			Context: op.String() + " operands",
			Want:    a.f.Shape(),
			Got:     b.f.Shape(),
		}
	}
	x, y := a.f.Values(), b.f.Values()
	out := make([]float64, len(x))
	for i := range x {
		out[i] = fn(x[i], y[i])
	}
	return value{f: a.f.WithValues(out)}, nil
}

// advected computes u·ddx(a) + v·ddy(a).
func (ev *Evaluator) advected(a expr.Expr) (value, error) {
	u, err := ev.ds.Field(VelocityX)
	if err != nil {
		return value{}, fmt.Errorf("advected: %w", err)
	}
	v, err := ev.ds.Field(VelocityY)
	if err != nil {
		return value{}, fmt.Errorf("advected: %w", err)
	}
	s, err := ev.spectrum(a)
	if err != nil {
		return value{}, err
	}
	if s == nil {
		return value{s: 0}, nil
	}
	dx := s.Multiply(ev.symbol(expr.OpDdx)).Real(ev.template).Values()
	dy := s.Multiply(ev.symbol(expr.OpDdy)).Real(ev.template).Values()
	uv, vv := u.Values(), v.Values()
	out := make([]float64, len(dx))
	for i := range out {
		out[i] = uv[i]*dx[i] + vv[i]*dy[i]
	}
	return value{f: ev.template.WithValues(out)}, nil
}

// spectrum returns the spectrum of e. A nil spectrum with a nil error means
// e is spatially uniform with a vanishing derivative (a scalar, or a
// derivative of one). Chains of ddx, ddy and laplacian stay in spectral space.
func (ev *Evaluator) spectrum(e expr.Expr) (*grid.Spectrum, error) {
	switch n := e.(type) {
	case expr.Literal:
		return nil, nil

	case expr.FieldRef:
		return ev.ds.Spectral(n.Name)

	case expr.Unary:
		if n.Op.IsSpatial() && n.Op != expr.OpAdvected {
			key := n.String()
			if s, ok := ev.cache.get(ev.ds, key); ok {
				return s, nil
			}
			inner, err := ev.spectrum(n.X)
			if err != nil || inner == nil {
				return nil, err
			}
			s := inner.Multiply(ev.symbol(n.Op))
			ev.cache.put(ev.ds, key, s)
			return s, nil
		}
	}

	v, err := ev.eval(e)
	if err != nil {
		return nil, err
	}
	if v.f == nil {
		return nil, nil
	}
	return grid.Forward(v.f), nil
}

// symbol returns the spectral multiplier of a differential operator. The
// unpaired Nyquist mode of an even-length axis is zeroed for first
// derivatives so that real input gives real output.
func (ev *Evaluator) symbol(op expr.Op) func(j, i int) complex128 {
	switch op {
	case expr.OpDdx:
		return func(j, i int) complex128 {
			if i == ev.nyqX {
				return 0
			}
			return complex(0, ev.k[i])
		}
	case expr.OpDdy:
		return func(j, i int) complex128 {
			if j == ev.nyqY {
				return 0
			}
			return complex(0, ev.l[j])
		}
	case expr.OpLaplacian:
		return func(j, i int) complex128 {
			return complex(-(ev.k[i]*ev.k[i] + ev.l[j]*ev.l[j]), 0)
		}
	}
	panic(fmt.Sprintf("eval: %s has no spectral symbol", op))
}
