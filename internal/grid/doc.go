// Package grid provides the gridded field store used by every other package.
//
// A Dataset holds named real-space fields that all share one shape,
// (batch, y, x) or (batch, lev, y, x), together with the coordinate
// vectors x, y, k, l, lev and batch. Both horizontal axes are periodic and
// k, l are angular wavenumbers in FFT order (see Wavenumbers), so spectral
// duals of every field are well defined.
//
// Key constraints:
//   - Fields are immutable once placed in a Dataset. Values() exposes the
//     backing slice for speed; callers must treat it as read-only.
//   - Datasets are immutable. With returns a new Dataset sharing the
//     untouched fields of its receiver.
//   - Spectral duals are computed lazily and memoized; Spectral is safe for
//     concurrent use.
package grid
