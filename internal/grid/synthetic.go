package grid

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// SyntheticOptions configures Synthetic.
type SyntheticOptions struct {
	NX, NY int
	// LX, LY are domain lengths; zero means 2π.
	LX, LY float64
	Batch  int
	// Levels is the number of vertical levels; zero omits the lev dimension.
	Levels int
	// MaxMode is the largest integer wavenumber excited; zero means 6.
	MaxMode int
	Seed    uint64
}

// Synthetic builds a band-limited random periodic dataset. It contains a
// scalar field "inputs" and a non-divergent velocity pair "u", "v" derived
// analytically from a random streamfunction. Identical options always
// produce identical datasets.
func Synthetic(opts SyntheticOptions) (*Dataset, error) {
	if opts.NX <= 0 || opts.NY <= 0 || opts.Batch <= 0 {
		return nil, fmt.Errorf("synthetic: nx, ny and batch must be positive")
	}
	if opts.LX == 0 {
		opts.LX = 2 * math.Pi
	}
	if opts.LY == 0 {
		opts.LY = 2 * math.Pi
	}
	if opts.MaxMode == 0 {
		opts.MaxMode = 6
	}
	if maxMode := min(opts.NX, opts.NY)/2 - 1; opts.MaxMode > maxMode {
		opts.MaxMode = max(maxMode, 1)
	}

	coords := PeriodicCoords(opts.NX, opts.NY, opts.LX, opts.LY, opts.Batch, opts.Levels)
	slabs := opts.Batch * max(opts.Levels, 1)
	plane := opts.NX * opts.NY
	inputs := make([]float64, slabs*plane)
	u := make([]float64, slabs*plane)
	v := make([]float64, slabs*plane)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	kmax := float64(opts.MaxMode)
	for s := 0; s < slabs; s++ {
		off := s * plane
		for n := 0; n <= opts.MaxMode; n++ {
			for m := -opts.MaxMode; m <= opts.MaxMode; m++ {
				if n == 0 && m <= 0 {
					continue
				}
				kx := 2 * math.Pi * float64(m) / opts.LX
				ly := 2 * math.Pi * float64(n) / opts.LY
				r2 := float64(m*m + n*n)
				decay := math.Exp(-r2 / (2 * kmax * kmax))
				a := rng.NormFloat64() * decay
				phase := 2 * math.Pi * rng.Float64()
				psi := rng.NormFloat64() * decay / math.Sqrt(r2)
				psiPhase := 2 * math.Pi * rng.Float64()
				for j := 0; j < opts.NY; j++ {
					y := coords.Y[j]
					for i := 0; i < opts.NX; i++ {
						x := coords.X[i]
						theta := kx*x + ly*y
						p := off + j*opts.NX + i
						inputs[p] += a * math.Cos(theta+phase)
						st := math.Sin(theta + psiPhase)
						u[p] += psi * ly * st
						v[p] -= psi * kx * st
					}
				}
			}
		}
	}

	return New(coords, map[string][]float64{
		"inputs": inputs,
		"u":      u,
		"v":      v,
	})
}
