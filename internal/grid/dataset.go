package grid

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Coords holds the coordinate vectors of a Dataset.
// K and L are angular wavenumbers in FFT order (see Wavenumbers).
// Lev is empty for single-level data.
type Coords struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	K     []float64 `json:"k"`
	L     []float64 `json:"l"`
	Lev   []float64 `json:"lev,omitempty"`
	Batch []float64 `json:"batch"`
}

func (c Coords) validate() error {
	switch {
	case len(c.X) == 0 || len(c.Y) == 0:
		return fmt.Errorf("coords: x and y must be non-empty")
	case len(c.K) != len(c.X):
		return fmt.Errorf("coords: len(k)=%d must equal len(x)=%d", len(c.K), len(c.X))
	case len(c.L) != len(c.Y):
		return fmt.Errorf("coords: len(l)=%d must equal len(y)=%d", len(c.L), len(c.Y))
	case len(c.Batch) == 0:
		return fmt.Errorf("coords: batch must be non-empty")
	}
	return nil
}

// Dataset is an immutable collection of conformant real-space fields.
type Dataset struct {
	coords Coords
	dims   []string
	shape  []int
	fields map[string]*Field

	mu       sync.Mutex
	spectral map[string]*Spectrum
}

// New creates a Dataset from coordinates and flat row-major variables.
// Every variable must have exactly len(batch)·[len(lev)]·len(y)·len(x) values.
func New(coords Coords, vars map[string][]float64) (*Dataset, error) {
	if err := coords.validate(); err != nil {
		return nil, err
	}
	ds := &Dataset{
		coords:   coords,
		fields:   make(map[string]*Field, len(vars)),
		spectral: make(map[string]*Spectrum),
	}
	if len(coords.Lev) > 0 {
		ds.dims = []string{DimBatch, DimLev, DimY, DimX}
		ds.shape = []int{len(coords.Batch), len(coords.Lev), len(coords.Y), len(coords.X)}
	} else {
		ds.dims = []string{DimBatch, DimY, DimX}
		ds.shape = []int{len(coords.Batch), len(coords.Y), len(coords.X)}
	}
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		f, err := NewField(ds.dims, ds.shape, vars[name])
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		ds.fields[name] = f
	}
	return ds, nil
}

// Coords returns the coordinate vectors. They must not be modified.
func (ds *Dataset) Coords() Coords { return ds.coords }

// Dims returns a copy of the dimension names shared by all fields.
func (ds *Dataset) Dims() []string { return slices.Clone(ds.dims) }

// Shape returns a copy of the shape shared by all fields.
func (ds *Dataset) Shape() []int { return slices.Clone(ds.shape) }

// Len returns the number of grid points per field.
func (ds *Dataset) Len() int {
	n := 1
	for _, s := range ds.shape {
		n *= s
	}
	return n
}

// Levels returns the number of vertical levels (1 when there is no lev dimension).
func (ds *Dataset) Levels() int {
	if len(ds.coords.Lev) == 0 {
		return 1
	}
	return len(ds.coords.Lev)
}

// Names returns the field names in sorted order.
func (ds *Dataset) Names() []string {
	return slices.Sorted(maps.Keys(ds.fields))
}

// Has reports whether a field named name exists.
func (ds *Dataset) Has(name string) bool {
	_, ok := ds.fields[name]
	return ok
}

// Field returns the named field, or an UnknownFieldError.
func (ds *Dataset) Field(name string) (*Field, error) {
	f, ok := ds.fields[name]
	if !ok {
		return nil, &UnknownFieldError{Name: name, Available: ds.Names()}
	}
	return f, nil
}

// NewField wraps data as a field with the dataset's shape.
func (ds *Dataset) NewField(data []float64) (*Field, error) {
	return NewField(ds.dims, ds.shape, data)
}

// Constant returns a field of the dataset's shape filled with v.
func (ds *Dataset) Constant(v float64) *Field {
	data := make([]float64, ds.Len())
	if v != 0 {
		for i := range data {
			data[i] = v
		}
	}
	return &Field{dims: ds.dims, shape: ds.shape, data: data}
}

// Conforms returns a ShapeMismatchError if f does not have the dataset's shape.
func (ds *Dataset) Conforms(f *Field) error {
	if !slices.Equal(f.shape, ds.shape) {
		return &ShapeMismatchError{Context: "dataset field", Want: ds.Shape(), Got: f.Shape()}
	}
	return nil
}

// With returns a new Dataset containing f under name, replacing any field
// of the same name. The receiver is unchanged.
func (ds *Dataset) With(name string, f *Field) (*Dataset, error) {
	if err := ds.Conforms(f); err != nil {
		return nil, fmt.Errorf("with %q: %w", name, err)
	}
	next := &Dataset{
		coords:   ds.coords,
		dims:     ds.dims,
		shape:    ds.shape,
		fields:   maps.Clone(ds.fields),
		spectral: make(map[string]*Spectrum),
	}
	next.fields[name] = f

	ds.mu.Lock()
	for k, v := range ds.spectral {
		if k != name {
			next.spectral[k] = v
		}
	}
	ds.mu.Unlock()
	return next, nil
}

// Spectral returns the memoized spectrum of the named field.
func (ds *Dataset) Spectral(name string) (*Spectrum, error) {
	f, err := ds.Field(name)
	if err != nil {
		return nil, err
	}
	ds.mu.Lock()
	s, ok := ds.spectral[name]
	ds.mu.Unlock()
	if ok {
		return s, nil
	}

	s = Forward(f)

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if existing, ok := ds.spectral[name]; ok {
		return existing, nil
	}
	ds.spectral[name] = s
	return s, nil
}

// PeriodicCoords builds coordinates for an nx×ny doubly periodic grid of
// size lx×ly with batch samples and nlev levels (0 for no lev dimension).
func PeriodicCoords(nx, ny int, lx, ly float64, batch, nlev int) Coords {
	c := Coords{
		X:     make([]float64, nx),
		Y:     make([]float64, ny),
		K:     Wavenumbers(nx, lx),
		L:     Wavenumbers(ny, ly),
		Batch: make([]float64, batch),
	}
	for i := range c.X {
		c.X[i] = float64(i) * lx / float64(nx)
	}
	for j := range c.Y {
		c.Y[j] = float64(j) * ly / float64(ny)
	}
	for b := range c.Batch {
		c.Batch[b] = float64(b)
	}
	if nlev > 0 {
		c.Lev = make([]float64, nlev)
		for z := range c.Lev {
			c.Lev[z] = float64(z + 1)
		}
	}
	return c
}
