package grid

import (
	"fmt"
	"slices"
)

// Dimension names used by Dataset.
const (
	DimBatch = "batch"
	DimLev   = "lev"
	DimY     = "y"
	DimX     = "x"
)

// Field is a dense row-major array whose two trailing dimensions are y and x.
type Field struct {
	dims  []string
	shape []int
	data  []float64
}

// NewField creates a Field. The data slice is used as-is (not copied).
//
// dims and shape must have the same length (at least 2) and the product of
// shape must equal len(data).
func NewField(dims []string, shape []int, data []float64) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("field: %d dims for %d-dimensional shape", len(dims), len(shape))
	}
	if len(shape) < 2 {
		return nil, fmt.Errorf("field: need at least y and x dimensions, got %v", dims)
	}
	n := 1
	for i, s := range shape {
		if s <= 0 {
			return nil, fmt.Errorf("field: dimension %q has non-positive size %d", dims[i], s)
		}
		n *= s
	}
	if n != len(data) {
		return nil, &ShapeMismatchError{
			Context: "field data length",
			Want:    shape,
			Got:     []int{len(data)},
		}
	}
	return &Field{
		dims:  slices.Clone(dims),
		shape: slices.Clone(shape),
		data:  data,
	}, nil
}

// Dims returns a copy of the dimension names.
func (f *Field) Dims() []string { return slices.Clone(f.dims) }

// Shape returns a copy of the shape.
func (f *Field) Shape() []int { return slices.Clone(f.shape) }

// Len returns the number of elements.
func (f *Field) Len() int { return len(f.data) }

// NX returns the size of the trailing (x) dimension.
func (f *Field) NX() int { return f.shape[len(f.shape)-1] }

// NY returns the size of the y dimension.
func (f *Field) NY() int { return f.shape[len(f.shape)-2] }

// Slabs returns the number of (y, x) planes.
func (f *Field) Slabs() int { return len(f.data) / (f.NX() * f.NY()) }

// Values returns the backing slice. It must not be modified.
func (f *Field) Values() []float64 { return f.data }

// At returns the element at the given multi-index.
func (f *Field) At(idx ...int) float64 {
	if len(idx) != len(f.shape) {
		panic(fmt.Sprintf("grid: At called with %d indices on %d-dimensional field", len(idx), len(f.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= f.shape[i] {
			panic(fmt.Sprintf("grid: index %d out of range for dimension %q", v, f.dims[i]))
		}
		off = off*f.shape[i] + v
	}
	return f.data[off]
}

// SameShape reports whether g has exactly the shape of f.
func (f *Field) SameShape(g *Field) bool {
	return slices.Equal(f.shape, g.shape)
}

// WithValues returns a new Field with f's dims and shape over data.
// It panics if len(data) != f.Len().
func (f *Field) WithValues(data []float64) *Field {
	if len(data) != len(f.data) {
		panic(fmt.Sprintf("grid: WithValues length %d, want %d", len(data), len(f.data)))
	}
	return &Field{dims: f.dims, shape: f.shape, data: data}
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	return &Field{
		dims:  slices.Clone(f.dims),
		shape: slices.Clone(f.shape),
		data:  slices.Clone(f.data),
	}
}

// Level returns the flat indices belonging to vertical level lev. For fields
// without a lev dimension it returns nil.
func (f *Field) Level(lev int) []int {
	if len(f.dims) != 4 || f.dims[1] != DimLev {
		return nil
	}
	nlev := f.shape[1]
	plane := f.NX() * f.NY()
	idx := make([]int, 0, f.shape[0]*plane)
	for b := 0; b < f.shape[0]; b++ {
		start := (b*nlev + lev) * plane
		for i := 0; i < plane; i++ {
			idx = append(idx, start+i)
		}
	}
	return idx
}
