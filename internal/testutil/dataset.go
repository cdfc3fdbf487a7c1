package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hybridsr/internal/eval"
	"github.com/roach88/hybridsr/internal/grid"
)

// Dataset builds a synthetic dataset, failing the test on error.
func Dataset(t testing.TB, opts grid.SyntheticOptions) *grid.Dataset {
	t.Helper()
	ds, err := grid.Synthetic(opts)
	require.NoError(t, err)
	return ds
}

// Eval evaluates expression text against ds.
func Eval(t testing.TB, ds *grid.Dataset, text string) *grid.Field {
	t.Helper()
	f, err := eval.EvaluateString(text, ds)
	require.NoError(t, err)
	return f
}

// WithDerived returns ds extended with name = text. The receiver is unchanged.
func WithDerived(t testing.TB, ds *grid.Dataset, name, text string) *grid.Dataset {
	t.Helper()
	next, err := ds.With(name, Eval(t, ds, text))
	require.NoError(t, err)
	return next
}
