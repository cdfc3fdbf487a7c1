// Package eval evaluates expression trees against a grid.Dataset.
//
// Arithmetic operators act pointwise with scalar broadcasting. Spatial
// operators (ddx, ddy, laplacian, advected) are applied in spectral space
// over each (y, x) plane: the operand is transformed with a 2D FFT,
// multiplied by the operator's symbol and transformed back. Consecutive
// spatial operators are composed in spectral space without intermediate
// round trips, and field references reuse the dataset's memoized spectra.
//
// Evaluation is pure: the dataset is never modified and every result is a
// newly allocated field.
package eval
