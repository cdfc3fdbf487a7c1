package grid

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum holds the 2D discrete Fourier coefficients of every (y, x) plane
// of a field. Coefficients are stored row-major as (slab, l, k) in FFT order,
// matching the Dataset's L and K coordinates.
type Spectrum struct {
	slabs, ny, nx int
	coef          []complex128
}

// Slabs returns the number of planes.
func (s *Spectrum) Slabs() int { return s.slabs }

// NY returns the number of l wavenumbers.
func (s *Spectrum) NY() int { return s.ny }

// NX returns the number of k wavenumbers.
func (s *Spectrum) NX() int { return s.nx }

// Coefficients returns the backing coefficient slice. It must not be modified.
func (s *Spectrum) Coefficients() []complex128 { return s.coef }

// Multiply returns a new Spectrum whose coefficient at wavenumber indices
// (j, i), i.e. (l[j], k[i]), is scaled by mult(j, i). The multiplier is
// computed once per plane position and reused across slabs.
func (s *Spectrum) Multiply(mult func(j, i int) complex128) *Spectrum {
	plane := s.nx * s.ny
	m := make([]complex128, plane)
	for j := 0; j < s.ny; j++ {
		for i := 0; i < s.nx; i++ {
			m[j*s.nx+i] = mult(j, i)
		}
	}
	out := make([]complex128, len(s.coef))
	for b := 0; b < s.slabs; b++ {
		off := b * plane
		for p := 0; p < plane; p++ {
			out[off+p] = s.coef[off+p] * m[p]
		}
	}
	return &Spectrum{slabs: s.slabs, ny: s.ny, nx: s.nx, coef: out}
}

// Forward computes the spectrum of f, transforming along x then y.
func Forward(f *Field) *Spectrum {
	nx, ny := f.NX(), f.NY()
	s := &Spectrum{slabs: f.Slabs(), ny: ny, nx: nx, coef: make([]complex128, f.Len())}
	for i, v := range f.data {
		s.coef[i] = complex(v, 0)
	}
	t := newPlaneTransform(ny, nx)
	for b := 0; b < s.slabs; b++ {
		t.forward(s.coef[b*nx*ny : (b+1)*nx*ny])
	}
	return s
}

// Real inverse-transforms s and returns the real part as a Field shaped
// like ref. The inverse is normalized so Real(Forward(f)) == f.
func (s *Spectrum) Real(ref *Field) *Field {
	if ref.Len() != len(s.coef) || ref.NX() != s.nx || ref.NY() != s.ny {
		panic("grid: spectrum does not match reference field")
	}
	plane := s.nx * s.ny
	buf := make([]complex128, plane)
	out := make([]float64, len(s.coef))
	t := newPlaneTransform(s.ny, s.nx)
	norm := 1 / float64(plane)
	for b := 0; b < s.slabs; b++ {
		copy(buf, s.coef[b*plane:(b+1)*plane])
		t.inverse(buf)
		for p, c := range buf {
			out[b*plane+p] = real(c) * norm
		}
	}
	return ref.WithValues(out)
}

// planeTransform performs in-place 2D FFTs on one ny×nx plane.
// It owns scratch buffers and is not safe for concurrent use.
type planeTransform struct {
	ny, nx int
	fx, fy *fourier.CmplxFFT
	col    []complex128
}

func newPlaneTransform(ny, nx int) *planeTransform {
	return &planeTransform{
		ny:  ny,
		nx:  nx,
		fx:  fourier.NewCmplxFFT(nx),
		fy:  fourier.NewCmplxFFT(ny),
		col: make([]complex128, ny),
	}
}

func (t *planeTransform) forward(p []complex128) {
	for j := 0; j < t.ny; j++ {
		row := p[j*t.nx : (j+1)*t.nx]
		t.fx.Coefficients(row, row)
	}
	for i := 0; i < t.nx; i++ {
		for j := 0; j < t.ny; j++ {
			t.col[j] = p[j*t.nx+i]
		}
		t.fy.Coefficients(t.col, t.col)
		for j := 0; j < t.ny; j++ {
			p[j*t.nx+i] = t.col[j]
		}
	}
}

func (t *planeTransform) inverse(p []complex128) {
	for i := 0; i < t.nx; i++ {
		for j := 0; j < t.ny; j++ {
			t.col[j] = p[j*t.nx+i]
		}
		t.fy.Sequence(t.col, t.col)
		for j := 0; j < t.ny; j++ {
			p[j*t.nx+i] = t.col[j]
		}
	}
	for j := 0; j < t.ny; j++ {
		row := p[j*t.nx : (j+1)*t.nx]
		t.fx.Sequence(row, row)
	}
}

// Wavenumbers returns the angular wavenumbers of an n-point periodic axis of
// length length, in FFT order: 2π·[0, 1, ..., n/2-1, -n/2, ..., -1]/length
// for even n.
func Wavenumbers(n int, length float64) []float64 {
	k := make([]float64, n)
	for i := 0; i < n; i++ {
		m := i
		if i >= (n+1)/2 {
			m = i - n
		}
		k[i] = 2 * math.Pi * float64(m) / length
	}
	return k
}

// NyquistIndex returns the index of the unpaired Nyquist mode of an n-point
// axis, or -1 when n is odd.
func NyquistIndex(n int) int {
	if n%2 != 0 {
		return -1
	}
	return n / 2
}
